package types

import (
	"encoding/base64"
	"strconv"
)

func formatInt(v int64) string    { return strconv.FormatInt(v, 10) }
func formatUint(v uint64) string  { return strconv.FormatUint(v, 10) }
func base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
