package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// integer decodes whole numbers that providers emit as integers, integral
// floats or numeric strings.
type integer int

func (n *integer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	text := string(data)
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%s is not a number", string(data))
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("%s is not an integer", string(data))
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("%s is out of range", string(data))
	}
	*n = integer(f)
	return nil
}
