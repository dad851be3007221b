package core

import (
	"fmt"
	"strings"
)

// A Label is a resolved reference to a single target.
type Label struct {
	Package string
	Target  string
}

// String returns the canonical form of the label, i.e. //package:target.
func (label Label) String() string {
	return "//" + label.Package + ":" + label.Target
}

// ResolveLabel resolves a label string to a package and target. Relative labels (:target or a
// bare target) are resolved against currentPackage, which may be empty for the root package.
func ResolveLabel(label, currentPackage string) (Label, error) {
	stripped := strings.TrimLeft(label, "@")
	if rest := strings.TrimPrefix(stripped, "//"); rest != stripped {
		if pkg, target, found := strings.Cut(rest, ":"); found {
			return Label{Package: pkg, Target: target}, nil
		}
		return Label{Package: rest, Target: rest[strings.LastIndexByte(rest, '/')+1:]}, nil
	} else if strings.HasPrefix(stripped, ":") {
		return Label{Package: currentPackage, Target: stripped[1:]}, nil
	} else if !strings.ContainsAny(stripped, "/:") {
		return Label{Package: currentPackage, Target: stripped}, nil
	}
	return Label{}, fmt.Errorf("%w '%s': relative paths with / are not supported", ErrInvalidLabel, label)
}

// IsRelativeLabel returns true if the label needs a current package to resolve it.
func IsRelativeLabel(label string) bool {
	return !strings.HasPrefix(label, "//") && !strings.HasPrefix(label, "@")
}

// IsWildcard returns true if the label refers to more than one target.
func IsWildcard(label string) bool {
	return strings.Contains(label, "...") || strings.HasSuffix(label, ":all") || strings.HasSuffix(label, ":*")
}

// IsExternal returns true if the label refers to an external repository.
// Canonical @@ labels are not considered external.
func IsExternal(label string) bool {
	return strings.HasPrefix(label, "@") && !strings.HasPrefix(label, "@@")
}

// ShouldSkip returns true if we can't validate the label statically.
func ShouldSkip(label string) bool {
	return IsWildcard(label) || IsExternal(label)
}

// ExtractTargets returns the target patterns from a list of command-line arguments.
// Anything after a -- separator is passed through to the program and ignored.
func ExtractTargets(args []string) []string {
	var targets []string
	for _, arg := range args {
		if arg == "--" {
			break
		} else if strings.HasPrefix(arg, "-") {
			continue
		} else if strings.HasPrefix(arg, "//") || strings.HasPrefix(arg, "@") || strings.HasPrefix(arg, ":") {
			targets = append(targets, arg)
		}
	}
	return targets
}
