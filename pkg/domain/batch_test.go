package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRequest_Specs(t *testing.T) {
	req := domain.BatchRequest{Items: []map[string]any{
		{"element_id": 1, "name": "Mark"},
		{"kind": "move_element", "element_id": 2},
		{"kind": "", "element_id": 3},
	}}

	specs := req.Specs("set_parameter")
	require.Len(t, specs, 3)

	assert.Equal(t, "set_parameter", specs[0].Kind)
	assert.Equal(t, "Mark", specs[0].Params["name"])

	assert.Equal(t, "move_element", specs[1].Kind)
	_, hasKind := specs[1].Params["kind"]
	assert.False(t, hasKind, "kind must not leak into params")

	assert.Equal(t, "set_parameter", specs[2].Kind, "empty kind falls back to the default")
}

func TestOutcome_WireShape(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data, err := json.Marshal(domain.Succeeded(0, json.RawMessage(`{"element_id":7}`)))
		require.NoError(t, err)
		assert.JSONEq(t, `{"index":0,"success":true,"result":{"element_id":7}}`, string(data))
	})

	t.Run("Failure", func(t *testing.T) {
		data, err := json.Marshal(domain.Failed(1, domain.ErrElementNotFound))
		require.NoError(t, err)
		assert.JSONEq(t, `{"index":1,"success":false,"error":"Element not found"}`, string(data))
	})

	t.Run("FailureWithElement", func(t *testing.T) {
		err := domain.ElementNotFound(2)
		assert.ErrorIs(t, err, domain.ErrElementNotFound)
		assert.Equal(t, "Element not found", err.Error())

		data, err := json.Marshal(domain.Failed(1, err))
		require.NoError(t, err)
		assert.JSONEq(t, `{"index":1,"success":false,"error":"Element not found","element_id":2}`, string(data))

		var back domain.Outcome
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, int64(2), back.ElementID)
	})

	t.Run("NilValue", func(t *testing.T) {
		data, err := json.Marshal(domain.Succeeded(2, nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"index":2,"success":true,"result":null}`, string(data))
	})
}

func TestBatchReply_Counts(t *testing.T) {
	raw := `{"success":true,"results":[
		{"index":0,"success":true,"result":{"n":1}},
		{"index":1,"success":false,"error":"Element not found"},
		{"index":2,"success":true,"result":{"n":3}}]}`

	var reply domain.BatchReply
	require.NoError(t, json.Unmarshal([]byte(raw), &reply))

	assert.True(t, reply.Success)
	assert.Equal(t, 2, reply.Succeeded())
	assert.Equal(t, 1, reply.Failed())
	assert.Equal(t, "Element not found", reply.Results[1].Error)

	var v struct{ N int }
	require.NoError(t, reply.Results[2].Decode(&v))
	assert.Equal(t, 3, v.N)
	assert.Error(t, reply.Results[1].Decode(&v))
}

func TestBatchResult_EmptyReply(t *testing.T) {
	res := &domain.BatchResult{Committed: true}
	data, err := json.Marshal(res.Reply())
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"results":[]}`, string(data))
}

func TestChannelError_Is(t *testing.T) {
	cause := errors.New("broken pipe")
	err := domain.NewChannelError(domain.Disconnected, "set_parameters", cause)

	assert.ErrorIs(t, err, domain.ErrDisconnected)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrTimedOut)
	assert.Contains(t, err.Error(), "set_parameters")

	kind, ok := domain.FaultOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.Disconnected, kind)

	rejected := domain.Rejected("ping", "boom")
	assert.ErrorIs(t, rejected, domain.ErrHostRejected)
	assert.Equal(t, "ping: host rejected request: boom", rejected.Error())

	_, ok = domain.FaultOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestResponse_RequestID(t *testing.T) {
	cases := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{raw: `42`, want: 42},
		{raw: `"17"`, want: 17},
		{raw: `"abc"`, wantErr: true},
		{raw: `{"x":1}`, wantErr: true},
	}
	for _, tc := range cases {
		id, err := domain.Response{ID: json.RawMessage(tc.raw)}.RequestID()
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, id)
	}

	_, err := domain.Response{}.RequestID()
	assert.Error(t, err)
}
