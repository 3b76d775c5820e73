package weavetest

import "github.com/iov-one/flowtree"

// Tx carries Msg, or fails with Err.
type Tx struct {
	Msg flowtree.Msg
	Err error
}

var _ flowtree.Tx = (*Tx)(nil)

func (tx *Tx) GetMsg() (flowtree.Msg, error) {
	return tx.Msg, tx.Err
}

// Msg is routed by RoutePath. Every method fails with Err when it is set.
type Msg struct {
	RoutePath  string
	Serialized []byte
	Err        error
}

var _ flowtree.Msg = (*Msg)(nil)

func (m *Msg) Path() string { return m.RoutePath }

func (m *Msg) Validate() error { return m.Err }

func (m *Msg) Marshal() ([]byte, error) { return m.Serialized, m.Err }

func (m *Msg) Unmarshal(raw []byte) error {
	m.Serialized = raw
	return m.Err
}
