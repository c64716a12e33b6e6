package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExeName(t *testing.T) {
	win := Platform{OS: OSWindows, Arch: ArchX86_64}
	linux := Platform{OS: OSLinux, Arch: ArchX86_64}

	assert.Equal(t, "node.exe", win.ExeName("node"))
	assert.Equal(t, "node", linux.ExeName("node"))
}

func TestIntersect_Commutative(t *testing.T) {
	a := NewConstraint("a", "", Platform{OS: OSLinux, Arch: ArchX86_64}, Platform{OS: OSMacOS, Arch: ArchARM64})
	b := NewConstraint("b", "", Platform{OS: OSLinux, Arch: ArchX86_64}, Platform{OS: OSWindows, Arch: ArchX86_64})

	ab := Intersect(a, b)
	ba := Intersect(b, a)

	assert.ElementsMatch(t, ab.Allowed, ba.Allowed)
	assert.Len(t, ab.Allowed, 1)
	assert.Equal(t, Platform{OS: OSLinux, Arch: ArchX86_64}, ab.Allowed[0])
}

func TestIntersect_EmptyDisablesRuntime(t *testing.T) {
	a := NewConstraint("a", "", Platform{OS: OSLinux, Arch: ArchX86_64})
	b := NewConstraint("b", "", Platform{OS: OSWindows, Arch: ArchX86_64})

	ab := Intersect(a, b)
	assert.True(t, ab.IsEmpty())
}

func TestIntersect_UnconstrainedIsIdentity(t *testing.T) {
	a := NewConstraint("a", "", Platform{OS: OSLinux, Arch: ArchX86_64})
	ab := Intersect(a, AnyPlatform())
	assert.Equal(t, a.Allowed, ab.Allowed)
}
