package flowtree

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/weavetest/assert"
)

func TestParseBasisPoints(t *testing.T) {
	cases := map[string]struct {
		raw     string
		want    BasisPoints
		wantErr *errors.Error
	}{
		"plain number":         {raw: "2500", want: 2500},
		"whole percent":        {raw: "50%", want: 5000},
		"one decimal":          {raw: "12.5%", want: 1250},
		"two decimals":         {raw: "0.01%", want: 1},
		"hundred percent":      {raw: "100%", want: Scale},
		"too precise":          {raw: "1.234%", wantErr: errors.ErrInput},
		"empty decimals":       {raw: "1.%", wantErr: errors.ErrInput},
		"negative percent":     {raw: "-5%", wantErr: errors.ErrInput},
		"not a number":         {raw: "half", wantErr: errors.ErrInput},
		"spaces are trimmed":   {raw: " 10% ", want: 1000},
		"not a number percent": {raw: "x%", wantErr: errors.ErrInput},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := ParseBasisPoints(tc.raw)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr == nil {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestBasisPointsJSON(t *testing.T) {
	var v struct {
		A BasisPoints
		B BasisPoints
	}
	assert.Nil(t, json.Unmarshal([]byte(`{"A": "25%", "B": 125}`), &v))
	assert.Equal(t, BasisPoints(2500), v.A)
	assert.Equal(t, BasisPoints(125), v.B)

	err := json.Unmarshal([]byte(`{"A": true}`), &v)
	assert.IsErr(t, errors.ErrInput, err)
}

func TestBasisPointsValidate(t *testing.T) {
	assert.Nil(t, BasisPoints(0).Validate())
	assert.Nil(t, BasisPoints(Scale).Validate())
	assert.IsErr(t, errors.ErrInput, BasisPoints(-1).Validate())
	assert.IsErr(t, errors.ErrInput, BasisPoints(Scale+1).Validate())
	assert.Equal(t, "12.50%", BasisPoints(1250).String())
	assert.Equal(t, "0.07%", BasisPoints(7).String())
}

func TestMulDiv(t *testing.T) {
	cases := map[string]struct {
		a, b, c int64
		want    int64
		wantErr *errors.Error
	}{
		"simple":                {a: 1000, b: 5000, c: Scale, want: 500},
		"rounds down":           {a: 7, b: 1, c: 2, want: 3},
		"intermediate overflow": {a: math.MaxInt64, b: 4, c: 8, want: math.MaxInt64 / 2},
		"result overflow":       {a: math.MaxInt64, b: 2, c: 1, wantErr: errors.ErrOverflow},
		"division by zero":      {a: 1, b: 1, c: 0, wantErr: errors.ErrInput},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := MulDiv(tc.a, tc.b, tc.c)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Add(math.MaxInt64, 1)
	assert.IsErr(t, errors.ErrOverflow, err)
	s, err := Add(3, -5)
	assert.Nil(t, err)
	assert.Equal(t, int64(-2), s)
}
