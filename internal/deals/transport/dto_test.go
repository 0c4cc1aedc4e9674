package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]Amount{
		`{"title":"Obra","value":"1.234,56"}`: "1.234,56",
		`{"title":"Obra","value":1234.56}`:    "1234.56",
		`{"title":"Obra","value":null}`:       "",
	}
	for body, want := range cases {
		var fields DealFields
		require.NoError(t, json.Unmarshal([]byte(body), &fields), body)
		assert.Equal(t, want, fields.Value, body)
	}

	var fields DealFields
	assert.Error(t, json.Unmarshal([]byte(`{"value":true}`), &fields))
}
