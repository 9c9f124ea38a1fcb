// Package sysctl resolves and reads/writes integer kernel tunables by MIB.
//
// Resolving a name once and keeping the MIB avoids the name lookup on every
// read, which matters for the per-cycle temperature reads.
package sysctl

import "fmt"

// MIB is a resolved sysctl object identifier.
type MIB []int32

func (m MIB) String() string {
	return fmt.Sprint([]int32(m))
}

// Node is a resolved name together with its MIB.
type Node struct {
	Name string
	MIB  MIB
}

// ResolveNode is Resolve plus the name for error messages.
func ResolveNode(name string) (Node, error) {
	mib, err := Resolve(name)
	if err != nil {
		return Node{}, err
	}
	return Node{Name: name, MIB: mib}, nil
}

func (n Node) ReadInt() (int, error) {
	return ReadInt(n.MIB)
}

func (n Node) WriteInt(v int) error {
	return WriteInt(n.MIB, v)
}
