// Package server contains JSON payload types shared by the HTTP interfaces.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
)

// HumanPayload is a struct that hold the various types of data that can be
// returned by a route, with a type tag selecting which field is live
type HumanPayload struct {
	// Bool holds a boolean
	Bool bool

	// Int holds an integer
	Int int

	// Float holds a float64
	Float float64

	// String holds a string
	String string

	// T holds the type of the live field
	T types.BasicKind
}

// EncodeAndRespond writes the payload to w as JSON with the appropriate
// key for its type
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	var err error
	switch hp.T {
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		err = fmt.Errorf("humanpayload type %v not encodable", hp.T)
	}
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// BoolT holds a single bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT holds a single int
type IntT struct {
	Int int `json:"int"`
}

// FloatT holds a single float64
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT holds a single string
type StrT struct {
	Str string `json:"str"`
}
