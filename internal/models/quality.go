package models

import (
	"regexp"
	"strconv"
	"strings"
)

// Quality is the vertical resolution of a stream, 0 when unknown
type Quality int

const (
	QualityUnknown Quality = 0
	QualityP240    Quality = 240
	QualityP360    Quality = 360
	QualityP480    Quality = 480
	QualityP720    Quality = 720
	QualityP1080   Quality = 1080
	QualityP1440   Quality = 1440
	QualityP2160   Quality = 2160
)

func (q Quality) String() string {
	if q <= 0 {
		return "Unknown"
	}
	return strconv.Itoa(int(q)) + "p"
}

var qualityNumberRe = regexp.MustCompile(`(\d{3,4})p\b|^(\d{3,4})$`)

// QualityFromName parses labels like "720p", "HD", "FullHD", "SD" or "Mobile".
func QualityFromName(name string) Quality {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return QualityUnknown
	}

	if m := qualityNumberRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1] + m[2]); err == nil {
			switch {
			case n >= 2160:
				return QualityP2160
			case n >= 1440:
				return QualityP1440
			case n >= 1080:
				return QualityP1080
			case n >= 720:
				return QualityP720
			case n >= 480:
				return QualityP480
			case n >= 360:
				return QualityP360
			case n >= 240:
				return QualityP240
			}
		}
	}

	// Mobile/Celular first (most specific)
	if strings.Contains(lower, "mobile") || strings.Contains(lower, "celular") {
		return QualityP360
	}
	if strings.Contains(lower, "4k") || strings.Contains(lower, "uhd") {
		return QualityP2160
	}
	if strings.Contains(lower, "fullhd") || strings.Contains(lower, "full hd") || strings.Contains(lower, "fhd") {
		return QualityP1080
	}
	// SD / HD combined - treat as HD
	if strings.Contains(lower, "hd") {
		return QualityP720
	}
	if strings.Contains(lower, "sd") {
		return QualityP480
	}
	return QualityUnknown
}
