package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomDocumentSeatTokens(t *testing.T) {
	host := uuid.MustParse("0b6a7f7e-58c4-4d55-9df1-7f2f0c6f2a01")
	doc := NewWaitingRoom(Color{R: 200, G: 50, B: 80}, host)

	raw, err := doc.Encode()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, host.String(), fields["host"])
	assert.NotContains(t, fields, "guest", "an empty seat is omitted")

	decoded, err := DecodeRoom(raw)
	require.NoError(t, err)
	assert.Equal(t, host, decoded.Owner(RoleHost))
	assert.Equal(t, uuid.Nil, decoded.Owner(RoleGuest))
	assert.False(t, decoded.HasGuest())
}

func TestDecodeRoomWithoutTokens(t *testing.T) {
	doc, err := DecodeRoom(json.RawMessage(`{"status":"ready","startTime":1,"p1":{"r":3},"p2":{"score":12.5}}`))
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, doc.Host)
	assert.False(t, doc.HasGuest())
	assert.Equal(t, NoScore, doc.P1.Score, "a slot without a score has not submitted")
	assert.Equal(t, 12.5, doc.P2.Score)
	assert.Equal(t, 1, doc.SubmittedCount())
}

func TestDecodeRoomNull(t *testing.T) {
	doc, err := DecodeRoom(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}
