package scenario

import (
	"context"
	"fmt"
	"strings"

	"boardcheck/internal/failure"
	"boardcheck/internal/locator"
)

func quoted(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func occurrences(names []string, name string) int {
	n := 0
	for _, x := range names {
		if x == name {
			n++
		}
	}
	return n
}

// assertIncludes fails unless every name in want appears in got.
func assertIncludes(subject string, got []string, want ...string) error {
	for _, w := range want {
		if occurrences(got, w) == 0 {
			return failure.AssertionFailed(subject, fmt.Sprintf("%q present", w), quoted(got))
		}
	}
	return nil
}

// assertExcludes fails if any name in unwanted appears in got.
func assertExcludes(subject string, got []string, unwanted ...string) error {
	for _, u := range unwanted {
		if occurrences(got, u) > 0 {
			return failure.AssertionFailed(subject, fmt.Sprintf("%q absent", u), quoted(got))
		}
	}
	return nil
}

// assertCount fails unless name appears exactly want times in got.
func assertCount(subject string, got []string, name string, want int) error {
	if n := occurrences(got, name); n != want {
		return failure.AssertionFailed(subject, fmt.Sprintf("%d × %q", want, name), fmt.Sprintf("%d in %s", n, quoted(got)))
	}
	return nil
}

// assertInOrder fails unless want appears in got as a subsequence.
func assertInOrder(subject string, got, want []string) error {
	i := 0
	for _, g := range got {
		if i < len(want) && g == want[i] {
			i++
		}
	}
	if i < len(want) {
		return failure.AssertionFailed(subject, quoted(want)+" in order", quoted(got))
	}
	return nil
}

// assertRendered fails unless concept is rendered right now.
func assertRendered(ctx context.Context, cat *locator.Catalog, concept locator.Concept, args ...string) error {
	if cat.Present(ctx, concept, args...) {
		return nil
	}
	subject := string(concept)
	if len(args) > 0 {
		subject += " " + quoted(args)
	}
	return failure.AssertionFailed(subject, "rendered", "not rendered")
}
