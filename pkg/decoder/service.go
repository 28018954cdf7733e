package decoder

import (
	"strings"
)

// Decode appends chunk to residual and extracts every complete record.
// Returns the new residual and the decoded values in wire order.
func Decode(residual string, chunk []byte) (string, []string) {
	rest, records := DecodeRecords(residual, chunk)
	if len(records) == 0 {
		return rest, nil
	}

	values := make([]string, 0, len(records))
	for _, record := range records {
		values = append(values, record.Value)
	}
	return rest, values
}

// DecodeRecords works like Decode but keeps the label and malformed flag.
func DecodeRecords(residual string, chunk []byte) (string, []Record) {
	// Invalid byte sequences become U+FFFD, never an error
	buffer := residual + strings.ToValidUTF8(string(chunk), "\uFFFD")

	var records []Record
	for {
		endIdx := strings.IndexByte(buffer, Delimiter)
		if endIdx < 0 {
			break
		}
		records = append(records, ParseRecord(buffer[:endIdx+1]))
		buffer = buffer[endIdx+1:]
	}
	return buffer, records
}

// ParseRecord parses a single complete record, delimiter included.
func ParseRecord(record string) Record {
	label, value, found := strings.Cut(record, string(Separator))
	if !found {
		return Record{
			Label:     strings.TrimSpace(strings.TrimRight(record, string(Delimiter))),
			Malformed: true,
		}
	}

	value = strings.TrimSpace(value)
	value = strings.TrimRight(value, string(Delimiter))
	value = strings.TrimSpace(value)

	return Record{
		Label: strings.TrimSpace(label),
		Value: value,
	}
}

// New returns a Decoder with an empty residual.
func New() *Decoder {
	return &Decoder{}
}

// Feed decodes newly read bytes and returns the completed values.
func (d *Decoder) Feed(chunk []byte) []string {
	var values []string
	d.residual, values = Decode(d.residual, chunk)
	return values
}

// FeedRecords decodes newly read bytes and returns the completed records.
func (d *Decoder) FeedRecords(chunk []byte) []Record {
	var records []Record
	d.residual, records = DecodeRecords(d.residual, chunk)
	return records
}

// Residual returns the text still waiting for a delimiter.
func (d *Decoder) Residual() string {
	return d.residual
}

// Reset drops any partial record.
func (d *Decoder) Reset() {
	d.residual = ""
}
