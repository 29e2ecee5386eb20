package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pokedan/cardwatch/backend/internal/models"
	"github.com/pokedan/cardwatch/backend/internal/scrape"
)

type fakeListing struct {
	document  string
	docErr    error
	fragments []string
}

func (f *fakeListing) FetchDocument(ctx context.Context) (string, error) {
	return f.document, f.docErr
}

func (f *fakeListing) FetchFragment(ctx context.Context, page int) (string, error) {
	if page-1 < len(f.fragments) {
		return f.fragments[page-1], nil
	}
	return "", nil
}

type fakeRates struct {
	rates     map[string]decimal.Decimal
	refreshed int
}

func (f *fakeRates) GetRate(base, quote string) (decimal.Decimal, bool) {
	value, ok := f.rates[base+"/"+quote]
	return value, ok
}

func (f *fakeRates) RefreshIfStale(ctx context.Context) {
	f.refreshed++
}

func availableRates() *fakeRates {
	return &fakeRates{rates: map[string]decimal.Decimal{
		"USD/AUD": dec("1.52"),
		"USD/JPY": dec("149.85"),
	}}
}

type fakeResolver struct {
	mu     sync.Mutex
	err    error
	lookup func(detailRef string) string
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, detailRef string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.lookup != nil {
		return f.lookup(detailRef), nil
	}
	return "", nil
}

func listingRow(name, href, grading, price string) string {
	return `<tr class="offer">` +
		`<td class="title"><p class="title"><a href="` + href + `">` + name + `</a></p></td>` +
		`<td class="includes">` + grading + `</td>` +
		`<td class="price"><span class="js-price">` + price + `</span></td>` +
		`</tr>`
}

func listingDoc(summary string, rows ...string) string {
	html := `<html><body>` + summary + `<table id="games_table"><tbody>`
	for _, row := range rows {
		html += row
	}
	return html + `</tbody></table></body></html>`
}

func summaryRegion(total, count string) string {
	return `<div id="collection-summary">` +
		`<span class="js-card-count">` + count + `</span> cards worth ` +
		`<span class="js-total-value">` + total + `</span></div>`
}

func newTestPipeline(listing ListingFetcher, rates RateCache, images ImageResolver, maxPages int) *Pipeline {
	return NewPipeline(listing, scrape.NewExtractor(nil, zerolog.Nop()), rates, images, maxPages, 2, zerolog.Nop())
}

func TestPipelineFullRun(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		summaryRegion("$550.00", "2"),
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
		listingRow("Charizard", "/game/x/charizard", "Ungraded", "$50.00"),
	)}
	rates := availableRates()
	images := &fakeResolver{lookup: func(ref string) string { return "https://img.example.com" + ref + ".jpg" }}

	snapshot, err := newTestPipeline(listing, rates, images, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rates.refreshed != 1 {
		t.Errorf("Expected one staleness check, got %d", rates.refreshed)
	}
	if snapshot.ID == "" {
		t.Error("Expected snapshot ID")
	}
	if len(snapshot.Diagnostics) != 0 {
		t.Errorf("Expected clean run, got diagnostics %+v", snapshot.Diagnostics)
	}
	if len(snapshot.Cards) != 1 {
		t.Fatalf("Expected 1 card, got %d", len(snapshot.Cards))
	}

	card := snapshot.Cards[0]
	if card.Name != "Charizard" {
		t.Errorf("Expected Charizard, got %q", card.Name)
	}
	if card.ImageURL != "https://img.example.com/game/x/charizard.jpg" {
		t.Errorf("Unexpected image URL %q", card.ImageURL)
	}
	if len(card.Gradings) != 2 {
		t.Fatalf("Expected 2 gradings, got %d", len(card.Gradings))
	}

	psa := card.Gradings[0]
	if !psa.AmountUSD.Equal(dec("500")) {
		t.Errorf("Expected USD 500, got %s", psa.AmountUSD)
	}
	if psa.AmountAUD == nil || !psa.AmountAUD.Equal(dec("760")) {
		t.Errorf("Expected AUD 760, got %v", psa.AmountAUD)
	}
	if psa.AmountJPY == nil || !psa.AmountJPY.Equal(dec("74925")) {
		t.Errorf("Expected JPY 74925, got %v", psa.AmountJPY)
	}

	if snapshot.TotalValueUSD == nil || !snapshot.TotalValueUSD.Equal(dec("550")) {
		t.Errorf("Expected total USD 550, got %v", snapshot.TotalValueUSD)
	}
	if snapshot.TotalValueAUD == nil || !snapshot.TotalValueAUD.Equal(dec("836")) {
		t.Errorf("Expected total AUD 836, got %v", snapshot.TotalValueAUD)
	}
	if snapshot.CardCount == nil || *snapshot.CardCount != 2 {
		t.Errorf("Expected card count 2, got %v", snapshot.CardCount)
	}
}

func TestPipelineSkippedRowDiagnostic(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		summaryRegion("$505.00", "2"),
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
		listingRow("Gengar", "/game/x/gengar", "PSA 8", "call for price"),
		listingRow("Pikachu", "/game/x/pikachu", "Ungraded", "$5.00"),
	)}

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(snapshot.Cards) != 2 {
		t.Errorf("Expected 2 cards, got %d", len(snapshot.Cards))
	}
	if len(snapshot.Diagnostics) != 1 || snapshot.Diagnostics[0].Kind != models.DiagnosticRowSkipped {
		t.Errorf("Expected one row-skipped diagnostic, got %+v", snapshot.Diagnostics)
	}
}

func TestPipelineRatesUnavailable(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		summaryRegion("$500.00", "1"),
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
	)}
	rates := &fakeRates{rates: map[string]decimal.Decimal{}}

	snapshot, err := newTestPipeline(listing, rates, nil, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	grading := snapshot.Cards[0].Gradings[0]
	if !grading.AmountUSD.Equal(dec("500")) {
		t.Errorf("USD amount must survive missing rates, got %s", grading.AmountUSD)
	}
	if grading.AmountAUD != nil || grading.AmountJPY != nil {
		t.Errorf("Expected nil conversions, got %v / %v", grading.AmountAUD, grading.AmountJPY)
	}
	if snapshot.TotalValueAUD != nil || snapshot.TotalValueJPY != nil {
		t.Error("Expected nil converted totals")
	}
	if snapshot.TotalValueUSD == nil {
		t.Error("Expected USD total despite missing rates")
	}

	found := false
	for _, diag := range snapshot.Diagnostics {
		if diag.Kind == models.DiagnosticRatesUnavailable {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected rates-unavailable diagnostic, got %+v", snapshot.Diagnostics)
	}
}

func TestPipelineSummaryMissing(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		"",
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
	)}

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(snapshot.Cards) != 1 {
		t.Errorf("Cards must be populated in a degraded snapshot, got %d", len(snapshot.Cards))
	}
	if snapshot.TotalValueUSD != nil || snapshot.TotalValueAUD != nil || snapshot.TotalValueJPY != nil {
		t.Error("Expected nil totals without a summary")
	}
	if snapshot.CardCount != nil {
		t.Errorf("Expected nil card count, got %d", *snapshot.CardCount)
	}

	found := false
	for _, diag := range snapshot.Diagnostics {
		if diag.Kind == models.DiagnosticSummaryMissing {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected summary-missing diagnostic, got %+v", snapshot.Diagnostics)
	}
}

func TestPipelineTableMissingIsFatal(t *testing.T) {
	listing := &fakeListing{document: `<html><body><p>maintenance</p></body></html>`}

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 1).Run(context.Background())
	if !errors.Is(err, scrape.ErrTableNotFound) {
		t.Errorf("Expected ErrTableNotFound, got %v", err)
	}
	if snapshot != nil {
		t.Error("Expected no snapshot on fatal error")
	}
}

func TestPipelineFetchErrorIsFatal(t *testing.T) {
	listing := &fakeListing{docErr: errors.New("connection refused")}

	if _, err := newTestPipeline(listing, availableRates(), nil, 1).Run(context.Background()); err == nil {
		t.Error("Expected fatal error when the listing fetch fails")
	}
}

func TestPipelinePagination(t *testing.T) {
	listing := &fakeListing{
		document: listingDoc(
			summaryRegion("$585.00", "3"),
			listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
		),
		fragments: []string{
			listingRow("Blastoise", "/game/x/blastoise", "Ungraded", "$80.00"),
			listingRow("Pikachu", "/game/x/pikachu", "Ungraded", "$5.00"),
			"", // end of pagination
			listingRow("Mewtwo", "/game/x/mewtwo", "PSA 9", "$90.00"), // never reached
		},
	}

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 10).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := []string{"Charizard", "Blastoise", "Pikachu"}
	if len(snapshot.Cards) != len(want) {
		t.Fatalf("Expected %d cards, got %d", len(want), len(snapshot.Cards))
	}
	for i, name := range want {
		if snapshot.Cards[i].Name != name {
			t.Errorf("Expected card %d to be %s, got %s", i, name, snapshot.Cards[i].Name)
		}
	}
}

func TestPipelinePagedDiagnosticRowNumbers(t *testing.T) {
	listing := &fakeListing{
		document: listingDoc(
			summaryRegion("$585.00", "3"),
			listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
			listingRow("Blastoise", "/game/x/blastoise", "Ungraded", "$80.00"),
		),
		fragments: []string{
			listingRow("Pikachu", "/game/x/pikachu", "Ungraded", "$5.00") +
				listingRow("Gengar", "/game/x/gengar", "PSA 8", "call for price"),
			"",
		},
	}

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 10).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(snapshot.Diagnostics) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(snapshot.Diagnostics))
	}
	// Fourth row of the listing overall, even though it is the second row of
	// its fragment.
	if snapshot.Diagnostics[0].Row != 3 {
		t.Errorf("Expected diagnostic row 3, got %d", snapshot.Diagnostics[0].Row)
	}
}

func TestPipelineImageOrderPreserved(t *testing.T) {
	rows := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("Card %d", i)
		rows = append(rows, listingRow(name, fmt.Sprintf("/game/x/card-%d", i), "Ungraded", "$1.00"))
	}
	listing := &fakeListing{document: listingDoc(summaryRegion("$8.00", "8"), rows...)}
	images := &fakeResolver{lookup: func(ref string) string { return ref + ".jpg" }}

	snapshot, err := newTestPipeline(listing, availableRates(), images, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(snapshot.Cards) != 8 {
		t.Fatalf("Expected 8 cards, got %d", len(snapshot.Cards))
	}
	for i, card := range snapshot.Cards {
		wantName := fmt.Sprintf("Card %d", i)
		wantImage := fmt.Sprintf("/game/x/card-%d.jpg", i)
		if card.Name != wantName {
			t.Errorf("Expected card %d to be %s, got %s", i, wantName, card.Name)
		}
		if card.ImageURL != wantImage {
			t.Errorf("Expected image %s for card %d, got %s", wantImage, i, card.ImageURL)
		}
	}
}

func TestPipelineImageFailureIsDiagnostic(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		summaryRegion("$500.00", "1"),
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
	)}
	images := &fakeResolver{err: errors.New("detail page timeout")}

	snapshot, err := newTestPipeline(listing, availableRates(), images, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Image failures must not abort the run: %v", err)
	}
	if snapshot.Cards[0].ImageURL != "" {
		t.Errorf("Expected empty image URL, got %q", snapshot.Cards[0].ImageURL)
	}
	if len(snapshot.Diagnostics) != 1 || snapshot.Diagnostics[0].Kind != models.DiagnosticImageUnresolved {
		t.Errorf("Expected image-unresolved diagnostic, got %+v", snapshot.Diagnostics)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	listing := &fakeListing{document: listingDoc(
		summaryRegion("$500.00", "1"),
		listingRow("Charizard", "/game/x/charizard", "PSA 10", "$500.00"),
	)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshot, err := newTestPipeline(listing, availableRates(), nil, 1).Run(ctx)
	if err == nil {
		t.Error("Expected error from cancelled context")
	}
	if snapshot != nil {
		t.Error("Expected no partial snapshot on cancellation")
	}
}
