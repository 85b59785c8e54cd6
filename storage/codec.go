package storage

import (
	"errors"

	"github.com/tinylib/msgp/msgp"

	"github.com/janelia-flyem/omerotools/omero"
)

// Reports are stored as msgpack arrays:
//
//	report: [id, script, started, finished, message, [result...]]
//	result: [unit, outcome, message, error]
//
// An empty error string means no error.
const (
	reportFields = 6
	resultFields = 4
)

// MarshalReport appends the msgpack encoding of a report to b.
func MarshalReport(b []byte, r *omero.Report) []byte {
	o := msgp.AppendArrayHeader(b, reportFields)
	o = msgp.AppendString(o, r.ID)
	o = msgp.AppendString(o, r.Script)
	o = msgp.AppendTime(o, r.Started)
	o = msgp.AppendTime(o, r.Finished)
	o = msgp.AppendString(o, r.Message)
	o = msgp.AppendArrayHeader(o, uint32(len(r.Results)))
	for _, res := range r.Results {
		o = msgp.AppendArrayHeader(o, resultFields)
		o = msgp.AppendString(o, res.Unit)
		o = msgp.AppendUint8(o, uint8(res.Outcome))
		o = msgp.AppendString(o, res.Message)
		var errMsg string
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		o = msgp.AppendString(o, errMsg)
	}
	return o
}

// UnmarshalReport decodes a report written by MarshalReport and returns the
// remaining bytes.
func UnmarshalReport(bts []byte) (r *omero.Report, o []byte, err error) {
	var sz uint32
	if sz, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if sz != reportFields {
		err = msgp.ArrayError{Wanted: reportFields, Got: sz}
		return
	}
	r = new(omero.Report)
	if r.ID, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if r.Script, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if r.Started, bts, err = msgp.ReadTimeBytes(bts); err != nil {
		return
	}
	if r.Finished, bts, err = msgp.ReadTimeBytes(bts); err != nil {
		return
	}
	if r.Message, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	var n uint32
	if n, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if n > 0 {
		r.Results = make([]omero.Result, n)
	}
	for i := range r.Results {
		res := &r.Results[i]
		if sz, bts, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
			return
		}
		if sz != resultFields {
			err = msgp.ArrayError{Wanted: resultFields, Got: sz}
			return
		}
		if res.Unit, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return
		}
		var outcome uint8
		if outcome, bts, err = msgp.ReadUint8Bytes(bts); err != nil {
			return
		}
		res.Outcome = omero.Outcome(outcome)
		if res.Message, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return
		}
		var errMsg string
		if errMsg, bts, err = msgp.ReadStringBytes(bts); err != nil {
			return
		}
		if errMsg != "" {
			res.Err = errors.New(errMsg)
		}
	}
	o = bts
	return
}
