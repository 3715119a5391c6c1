package domain

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Upstream payloads are not typed. These are the only paths the service reads.
var (
	referencePaths = []string{"notification.reference", "reference"}
	imoPaths       = []string{"notification.vessel_information.imo", "vessel_information.imo"}
)

// Reference returns the caller-supplied reference string, if the payload has one.
func Reference(payload []byte) (string, bool) {
	for _, p := range referencePaths {
		v := gjson.GetBytes(payload, p)
		if v.Type == gjson.String {
			return v.Str, true
		}
	}
	return "", false
}

// VesselIMO extracts the vessel IMO number from either tolerated nesting shape.
// Numbers and numeric strings are accepted; anything else is reported as missing.
func VesselIMO(payload []byte) (string, bool) {
	for _, p := range imoPaths {
		v := gjson.GetBytes(payload, p)
		switch v.Type {
		case gjson.Number:
			if v.Num <= 0 || v.Num != float64(int64(v.Num)) {
				continue
			}
			return strconv.FormatInt(int64(v.Num), 10), true
		case gjson.String:
			s := strings.TrimSpace(v.Str)
			if s == "" {
				continue
			}
			if _, err := strconv.ParseUint(s, 10, 64); err != nil {
				continue
			}
			return s, true
		}
	}
	return "", false
}
