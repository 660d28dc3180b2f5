package ivs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestURL(t *testing.T) {
	assert.Equal(t,
		"rtmps://a1b2c3.global-contribute.live-video.net:443/app/",
		ingestURL("a1b2c3.global-contribute.live-video.net"))

	assert.Empty(t, ingestURL(""))
}
