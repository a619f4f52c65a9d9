package replication

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Role is the replication role reported by INFO.
type Role string

const (
	RolePrimary Role = "master"
	RoleReplica Role = "slave"
)

// ReplIDLen is the length of a generated replication ID.
const ReplIDLen = 40

const replIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Identity is fixed at startup and read-only afterwards.
type Identity struct {
	Role   Role
	ReplID string
	Offset int64
}

// NewPrimary returns a primary identity with a fresh replication ID.
func NewPrimary() (Identity, error) {
	id, err := NewReplID()
	if err != nil {
		return Identity{}, err
	}
	return Identity{Role: RolePrimary, ReplID: id}, nil
}

// NewReplica returns a replica identity. A replica learns its replication
// ID from the primary during PSYNC, which is never issued, so it stays empty.
func NewReplica() Identity {
	return Identity{Role: RoleReplica}
}

// NewReplID returns ReplIDLen random characters from [a-z0-9].
func NewReplID() (string, error) {
	const maxByte = 256 - 256%len(replIDAlphabet)

	out := make([]byte, 0, ReplIDLen)
	buf := make([]byte, ReplIDLen)
	for len(out) < ReplIDLen {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate replid: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, replIDAlphabet[int(b)%len(replIDAlphabet)])
			if len(out) == ReplIDLen {
				break
			}
		}
	}
	return string(out), nil
}

// Info renders the INFO replication section.
func (id Identity) Info() string {
	var b strings.Builder
	b.WriteString("# Replication\n")
	fmt.Fprintf(&b, "role:%s\n", id.Role)
	fmt.Fprintf(&b, "master_replid:%s\n", id.ReplID)
	fmt.Fprintf(&b, "master_repl_offset:%d", id.Offset)
	return b.String()
}
