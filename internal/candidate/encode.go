package candidate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antoniogi/dabmpi/internal/schema"
)

// Encode renders a Candidate as the textual "idx:val,idx:val,..." body
// spec.md §4.1/§6 persists inside a QueueEntry. Every parameter (including
// fixed ones) is encoded, matching the original source's behavior of
// round-tripping the whole vector, not just the mutable subset. '#' is
// reserved as the record's field separator and must not appear in any
// encoded value; string-kind parameters are expected not to contain ',' or
// ':' either, since those delimit the encoding itself.
func Encode(c *Candidate) string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = fmt.Sprintf("%d:%s", i, v.encode())
	}
	return strings.Join(parts, ",")
}

// Decode parses an "idx:val,idx:val,..." body against schema s into a new
// Candidate. Indices need not arrive in order, but every index must be
// present exactly once and in range, matching the schema's dimensionality;
// otherwise the line is treated as queue corruption (spec.md §7) and an
// error is returned for the caller to log-and-skip.
func Decode(s *schema.ParameterSchema, encoded string) (*Candidate, error) {
	fields := strings.Split(encoded, ",")
	if len(fields) != s.Len() {
		return nil, fmt.Errorf("candidate: expected %d parameters, got %d", s.Len(), len(fields))
	}
	c := New(s)
	seen := make([]bool, s.Len())
	for _, field := range fields {
		idxStr, raw, ok := strings.Cut(field, ":")
		if !ok {
			return nil, fmt.Errorf("candidate: malformed field %q", field)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= s.Len() {
			return nil, fmt.Errorf("candidate: bad index in field %q", field)
		}
		if seen[idx] {
			return nil, fmt.Errorf("candidate: duplicate index %d", idx)
		}
		seen[idx] = true
		v, err := decodeValue(s.At(idx).Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("candidate: index %d: %w", idx, err)
		}
		c.Values[idx] = v
	}
	return c, nil
}
