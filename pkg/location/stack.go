// SPDX-License-Identifier: MPL-2.0

package location

import "context"

type (
	stackKey struct{}

	// frame is one entry of the immutable location stack.
	frame struct {
		path   string
		parent *frame
		depth  int
	}
)

// Push returns a context whose current location is path. The previous location
// becomes current again once the caller stops using the returned context, so a
// module's location is released on every exit path.
func Push(ctx context.Context, path string) context.Context {
	parent, _ := ctx.Value(stackKey{}).(*frame)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return context.WithValue(ctx, stackKey{}, &frame{path: path, parent: parent, depth: depth})
}

// Current returns the location of the innermost executing module.
func Current(ctx context.Context) (string, bool) {
	f, _ := ctx.Value(stackKey{}).(*frame)
	if f == nil {
		return "", false
	}
	return f.path, true
}

// Stack returns the location stack, outermost first.
func Stack(ctx context.Context) []string {
	f, _ := ctx.Value(stackKey{}).(*frame)
	if f == nil {
		return nil
	}
	out := make([]string, f.depth)
	for i := f.depth - 1; f != nil; i, f = i-1, f.parent {
		out[i] = f.path
	}
	return out
}
