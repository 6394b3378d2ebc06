// Package repository fronts a content repository engine: descriptor queries pass straight
// through while every login shares the connection of the caller's execution context.
package repository

import (
	"context"

	"github.com/vyrodovalexey/repogate/internal/auth"
	"github.com/vyrodovalexey/repogate/internal/session"
)

// ValueType is the type of a descriptor value.
type ValueType string

// Descriptor value types.
const (
	TypeString  ValueType = "string"
	TypeBoolean ValueType = "boolean"
	TypeLong    ValueType = "long"
)

// Value is a typed descriptor value in its string form.
type Value struct {
	Type ValueType
	Raw  string
}

// Session is an authenticated engine connection bound to a workspace.
type Session interface {
	session.Connection

	// UserID names the user the session was opened for.
	UserID() string
	// Workspace returns the workspace name.
	Workspace() string
	// Subject returns the authenticated subject.
	Subject() *auth.Subject
}

// Repository is a content repository engine.
type Repository interface {
	// DescriptorKeys returns every descriptor key.
	DescriptorKeys() []string
	// IsStandardDescriptor reports whether key is a standard descriptor.
	IsStandardDescriptor(key string) bool
	// IsSingleValueDescriptor reports whether key has exactly one value.
	IsSingleValueDescriptor(key string) bool
	// DescriptorValue returns the value of a single-valued descriptor.
	DescriptorValue(key string) (Value, bool)
	// DescriptorValues returns the values of a descriptor.
	DescriptorValues(key string) ([]Value, bool)
	// Descriptor returns the string form of a single-valued descriptor, or "".
	Descriptor(key string) string

	// Connect authenticates credential and opens a session on workspace. A nil credential
	// and an empty workspace name are allowed; the engine decides what they mean.
	Connect(ctx context.Context, credential auth.Credential, workspace string) (Session, error)
}
