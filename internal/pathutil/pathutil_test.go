package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForEngineUnixPathUnchanged(t *testing.T) {
	assert.Equal(t, "/tmp/storage/code", NormalizeForEngine("/tmp/storage/code"))
}

func TestNormalizeForEngineWindowsDrive(t *testing.T) {
	assert.Equal(t, "/c/Users/me/storage", NormalizeForEngine(`C:\Users\me\storage`))
}

func TestJoinTargets(t *testing.T) {
	assert.Equal(t, "/a,/b", JoinTargets([]string{"/a", "/b"}))
	assert.Equal(t, "", JoinTargets(nil))
}
