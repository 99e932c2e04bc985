package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realtime-ai/interpreter/pkg/vad"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New(nil)

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)

	settings := s.Settings()
	assert.Equal(t, s.ID, settings.SessionID)
	assert.Equal(t, "th", settings.SourceLang)
	assert.Equal(t, "en", settings.TargetLang)
	assert.Equal(t, "adult_female", settings.Voice)
	assert.True(t, settings.Denoise)
	assert.False(t, s.Recording())

	assert.NotEqual(t, s.ID, New(nil).ID)
}

func TestConfigure(t *testing.T) {
	det := vad.NewMockDetector()
	seg, err := vad.NewSegmenter(vad.DefaultSegmenterConfig(), det)
	require.NoError(t, err)

	s := New(seg)
	s.Append([]byte{1, 2, 3})

	require.NoError(t, s.Configure("en", "", "adult_male", false))

	settings := s.Settings()
	assert.Equal(t, "en", settings.SourceLang)
	assert.Equal(t, "en", settings.TargetLang)
	assert.Equal(t, "adult_male", settings.Voice)
	assert.False(t, settings.Denoise)
	assert.Equal(t, 0, s.Buffered())
	assert.Equal(t, 1, det.ResetCount)
}

func TestSettingsIsSnapshot(t *testing.T) {
	s := New(nil)
	snap := s.Settings()

	require.NoError(t, s.Configure("ja", "ko", "", true))
	assert.Equal(t, "th", snap.SourceLang)
	assert.Equal(t, "ja", s.Settings().SourceLang)
}

func TestBuffer(t *testing.T) {
	s := New(nil)
	assert.Nil(t, s.Drain())

	s.Append([]byte{1, 2})
	s.Append([]byte{3})
	assert.Equal(t, 3, s.Buffered())

	out := s.Drain()
	assert.Equal(t, []byte{1, 2, 3}, out)
	assert.Equal(t, 0, s.Buffered())

	// the drained copy must not alias the buffer
	s.Append([]byte{9, 9, 9})
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestRecording(t *testing.T) {
	s := New(nil)
	s.Append([]byte{1, 2})

	s.StartRecording()
	assert.True(t, s.Recording())
	assert.Equal(t, 0, s.Buffered())

	s.Append([]byte{5, 6})
	assert.Equal(t, []byte{5, 6}, s.StopRecording())
	assert.False(t, s.Recording())
	assert.Nil(t, s.StopRecording())
}

func TestNextSegmentID(t *testing.T) {
	s := New(nil)
	assert.Equal(t, "seg_0001", s.NextSegmentID())
	assert.Equal(t, "seg_0002", s.NextSegmentID())
	assert.Equal(t, "seg_0003", s.NextSegmentID())
}

func TestClose(t *testing.T) {
	assert.NoError(t, New(nil).Close())

	det := vad.NewMockDetector()
	seg, err := vad.NewSegmenter(vad.DefaultSegmenterConfig(), det)
	require.NoError(t, err)
	require.NoError(t, New(seg).Close())
	assert.True(t, det.DestroyCalled)
}
