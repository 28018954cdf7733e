package decoder

const (
	// Delimiter terminates one record on the wire.
	Delimiter = '%'
	// Separator splits a record label from its value.
	Separator = ':'
)

// Record is one complete, delimited chunk of the form <label>:<value>%.
type Record struct {
	Label string
	Value string

	// No separator was found. Value is empty but still published.
	Malformed bool
}

// Decoder keeps the residual text between reads.
// Not safe for concurrent use, it belongs to a single reader loop.
type Decoder struct {
	residual string
}
