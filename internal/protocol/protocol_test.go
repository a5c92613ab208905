package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode_ValidFrames(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Request
	}{
		{"connect", "connect\talice", Request{Type: TypeConnect, Fields: []string{"alice"}}},
		{"connect empty handle", "connect\t", Request{Type: TypeConnect, Fields: []string{""}}},
		{"im", "im\tconv\t394\thello", Request{Type: TypeIM, Fields: []string{"conv", "394", "hello"}}},
		{"new-room", "new-room\tconv", Request{Type: TypeNewRoom, Fields: []string{"conv"}}},
		{"new-room auto", "new-room\t", Request{Type: TypeNewRoom, Fields: []string{""}}},
		{"add-to-room", "add-to-room\tbob\tconv", Request{Type: TypeAddToRoom, Fields: []string{"bob", "conv"}}},
		{"enter-room", "enter-room\tconv", Request{Type: TypeEnterRoom, Fields: []string{"conv"}}},
		{"exit-room", "exit-room\tconv", Request{Type: TypeExitRoom, Fields: []string{"conv"}}},
		{"disconnect", "disconnect", Request{Type: TypeDisconnect, Fields: []string{}}},
		{"disconnect trailing tab", "disconnect\t", Request{Type: TypeDisconnect, Fields: []string{}}},
		{"retrieve-participants", "retrieve-participants\tconv", Request{Type: TypeRetrieveParticipants, Fields: []string{"conv"}}},
		{"two-way-room", "two-way-room\tbob", Request{Type: TypeTwoWayRoom, Fields: []string{"bob"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.line)
			require.NoError(t, err)
			require.Equal(t, tt.want.Type, got.Type)
			require.Equal(t, tt.want.Fields, got.Fields)
		})
	}
}

func TestDecode_MalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty line", ""},
		{"unknown type", "teleport\tconv"},
		{"bare im", "im"},
		{"im missing text", "im\tconv\t394"},
		{"im non-numeric id", "im\tconv\tabc\thello"},
		{"im id too long", "im\tconv\t1234567890\thello"},
		{"im extra field", "im\tconv\t394\thello\textra"},
		{"im empty text", "im\tconv\t394\t"},
		{"enter-room no field", "enter-room"},
		{"enter-room empty name", "enter-room\t"},
		{"connect handle too long", "connect\t" + strings.Repeat("x", 257)},
		{"two-way-room empty handle", "two-way-room\t"},
		{"disconnect with field", "disconnect\tnow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.line)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_BoundaryLengths(t *testing.T) {
	longHandle := strings.Repeat("x", 256)
	req, err := Decode("connect\t" + longHandle)
	require.NoError(t, err)
	require.Equal(t, longHandle, req.Fields[0])

	longText := strings.Repeat("y", 512)
	req, err = Decode("im\tconv\t123456789\t" + longText)
	require.NoError(t, err)
	require.Equal(t, longText, req.Fields[2])

	_, err = Decode("im\tconv\t123456789\t" + strings.Repeat("y", 513))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestEncode(t *testing.T) {
	require.Equal(t, "init-roster\ta\tb\tc", Encode(TypeInitRoster, "a", "b", "c"))
	require.Equal(t, "disconnect", Encode(TypeDisconnect))
	// The error frame wraps a raw line that itself contains tabs.
	require.Equal(t, "error\tim\tconv\t394\thi", Encode(TypeError, "im\tconv\t394\thi"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	line := Encode(TypeIM, "conv", "394", "hello")
	req, err := Decode(line)
	require.NoError(t, err)
	require.Equal(t, TypeIM, req.Type)
	require.Equal(t, []string{"conv", "394", "hello"}, req.Fields)
}
