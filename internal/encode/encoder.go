package encode

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoder identifies one of the supported ffmpeg video encoders.
type Encoder string

const (
	EncoderX265    Encoder = "libx265"
	EncoderAOMAV1  Encoder = "av1"
	EncoderSVTAV1  Encoder = "libsvtav1"
	EncoderNVENC   Encoder = "hevc_nvenc"
	EncoderQSVHEVC Encoder = "hevc_qsv"
	EncoderQSVAV1  Encoder = "av1_qsv"
)

// ParseEncoder validates and canonicalizes an encoder name.
func ParseEncoder(name string) (Encoder, error) {
	switch Encoder(strings.ToLower(strings.TrimSpace(name))) {
	case EncoderX265:
		return EncoderX265, nil
	case EncoderAOMAV1:
		return EncoderAOMAV1, nil
	case EncoderSVTAV1:
		return EncoderSVTAV1, nil
	case EncoderNVENC:
		return EncoderNVENC, nil
	case EncoderQSVHEVC:
		return EncoderQSVHEVC, nil
	case EncoderQSVAV1:
		return EncoderQSVAV1, nil
	default:
		return "", fmt.Errorf("unknown encoder %q", name)
	}
}

// CodecName returns the value passed to ffmpeg's -c:v flag.
func (e Encoder) CodecName() string {
	if e == EncoderAOMAV1 {
		return "libaom-av1"
	}
	return string(e)
}

// qualityArgs returns the encoder-specific flags that pin the quality
// level. The hardware encoders take a quality number through their own
// rate-control flags rather than -crf.
func (e Encoder) qualityArgs(crf int) []string {
	q := strconv.Itoa(crf)
	switch e {
	case EncoderNVENC:
		return []string{"-rc:v", "vbr", "-cq:v", q, "-qmin", q, "-qmax", q}
	case EncoderQSVHEVC, EncoderQSVAV1:
		return []string{"-global_quality", q}
	default:
		return []string{"-crf", q}
	}
}
