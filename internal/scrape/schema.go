package scrape

// Field names a value extracted from one listing row.
type Field string

const (
	FieldName      Field = "name"
	FieldPrice     Field = "price"
	FieldGrading   Field = "grading"
	FieldDetailRef Field = "detail_ref"
)

// FieldRule is one declarative selector rule. The extractor applies the
// primary selector, then the fallback, then the default. A mandatory rule
// with no match skips the whole row; an optional one substitutes Default.
// When Attr is set the value comes from that attribute instead of the text.
type FieldRule struct {
	Field     Field
	Primary   string
	Fallback  string
	Attr      string
	Default   string
	Mandatory bool
}

// DefaultSchema matches the seller collection listing markup. Selector drift
// on the source site is a change here, not a new extraction code path.
func DefaultSchema() []FieldRule {
	return []FieldRule{
		{Field: FieldName, Primary: "p.title a", Fallback: "td.title a", Mandatory: true},
		{Field: FieldPrice, Primary: "span.js-price", Fallback: "td.price span.price", Mandatory: true},
		{Field: FieldGrading, Primary: "td.includes", Default: "Ungraded"},
		{Field: FieldDetailRef, Primary: "p.title a", Fallback: "td.title a", Attr: "href"},
	}
}
