package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.Error(t, err)
}

func TestGetPassword_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	var out bytes.Buffer
	_, err := GetPassword(&out)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetTextOr(t *testing.T) {
	var out bytes.Buffer

	got, err := GetTextOr(rdr("\n"), "Unit", "kg", &out)
	require.NoError(t, err)
	assert.Equal(t, "kg", got)
	assert.Contains(t, out.String(), "Unit [kg]")

	got, err = GetTextOr(rdr("pcs\n"), "Unit", "kg", &out)
	require.NoError(t, err)
	assert.Equal(t, "pcs", got)
}

func TestGetNumbers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantF   float64
		wantI   int64
		wantErr bool
	}{
		{name: "default", input: "\n", wantF: 1.5, wantI: 3},
		{name: "value", input: "7\n", wantF: 7, wantI: 7},
		{name: "garbage", input: "seven\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			f, err := GetFloatOr(rdr(tt.input), "Price", 1.5, &out)
			i, ierr := GetIntOr(rdr(tt.input), "Stock", 3, &out)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Error(t, ierr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, ierr)
			assert.Equal(t, tt.wantF, f)
			assert.Equal(t, tt.wantI, i)
		})
	}
}
