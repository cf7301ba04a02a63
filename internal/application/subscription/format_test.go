package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		userAgent string
		want      Format
	}{
		{"Clash-Verge/1.5.1", FormatClashMeta},
		{"clash.meta/1.18.0", FormatClashMeta},
		{"Mihomo/1.18.1", FormatClashMeta},
		{"FlClash/0.8.0", FormatClashMeta},
		{"ClashForAndroid/2.5.12", FormatClash},
		{"clash/1.11.0", FormatClash},
		{"SFA/1.8.0 sing-box/1.8.0", FormatSingBox},
		{"Hiddify/2.0.5", FormatSingBox},
		{"SingBox/1.8", FormatSingBox},
		{"Outline/1.12", FormatOutline},
		{"v2rayN/6.42", FormatV2RayJSON},
		{"Streisand/1.5", FormatV2RayJSON},
		{"v2rayNG/1.8.5", FormatV2RayJSON},
		{"Shadowrocket/1995", FormatBase64},
		{"curl/8.4.0", FormatBase64},
		{"", FormatBase64},
	}

	for _, tc := range cases {
		t.Run(tc.userAgent, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFormat(tc.userAgent))
		})
	}
}

func TestFormat_ContentType(t *testing.T) {
	assert.Equal(t, "text/yaml; charset=utf-8", FormatClash.ContentType())
	assert.Equal(t, "text/yaml; charset=utf-8", FormatClashMeta.ContentType())
	assert.Equal(t, "application/json; charset=utf-8", FormatSingBox.ContentType())
	assert.Equal(t, "application/json; charset=utf-8", FormatV2RayJSON.ContentType())
	assert.Equal(t, "text/plain; charset=utf-8", FormatBase64.ContentType())
	assert.Equal(t, "text/plain; charset=utf-8", FormatOutline.ContentType())
}
