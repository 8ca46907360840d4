package node

import (
	"context"
	"os"
	"path/filepath"
)

// KeyFileName is the identity key file under the node's home dir.  Its
// presence is what makes a node initialized.
const KeyFileName = "privkey.hex"

// Lifecycle is whether this node has been set up before.  It's read once
// at startup and handed around in the context.
type Lifecycle int

const (
	// LifecycleUninitialized is a fresh home dir, the key gets made now.
	LifecycleUninitialized Lifecycle = iota

	// LifecycleInitialized means the key file was already there.
	LifecycleInitialized
)

func (l Lifecycle) String() string {
	if l == LifecycleInitialized {
		return "initialized"
	}
	return "uninitialized"
}

// LoadLifecycle looks at home once.  Don't call it again after startup,
// pass the result down instead.
func LoadLifecycle(home string) (Lifecycle, error) {
	_, err := os.Stat(filepath.Join(home, KeyFileName))
	if err == nil {
		return LifecycleInitialized, nil
	}
	if os.IsNotExist(err) {
		return LifecycleUninitialized, nil
	}
	return LifecycleUninitialized, err
}

type lifecycleKey struct{}

// WithLifecycle attaches l to ctx.
func WithLifecycle(ctx context.Context, l Lifecycle) context.Context {
	return context.WithValue(ctx, lifecycleKey{}, l)
}

// LifecycleFromContext gets the state attached by WithLifecycle.
func LifecycleFromContext(ctx context.Context) (Lifecycle, bool) {
	l, ok := ctx.Value(lifecycleKey{}).(Lifecycle)
	return l, ok
}
