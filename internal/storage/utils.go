package storage

import "strconv"

// StrToUint converts a decimal string to uint.
func StrToUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
