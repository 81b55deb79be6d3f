package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuatMul_Identity(t *testing.T) {
	id := Quat{W: 1}
	q := Quat{X: 0.2, Y: 0.3, Z: 0.4, W: 0.5}

	assert.Equal(t, q, id.Mul(q))
	assert.Equal(t, q, q.Mul(id))
}

func TestRotX_RoundTrip(t *testing.T) {
	q := Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.927}

	back := RotX(90).Mul(RotX(-90).Mul(q))
	assert.InDelta(t, q.X, back.X, 1e-12)
	assert.InDelta(t, q.Y, back.Y, 1e-12)
	assert.InDelta(t, q.Z, back.Z, 1e-12)
	assert.InDelta(t, q.W, back.W, 1e-12)
}

func TestRotY(t *testing.T) {
	q := RotY(180)
	assert.InDelta(t, 1, q.Y, 1e-12)
	assert.InDelta(t, 0, q.W, 1e-12)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.234, Round(1.23449, 3))
	assert.Equal(t, 2.0, Round(1.9999, 3))
	assert.Equal(t, 0.1, Round(0.1, 3))
	assert.Equal(t, -0.5, Round(-0.4999, 3))
}

func TestSourcePositionRoundTrip(t *testing.T) {
	v := FromSourcePosition(1, 2, 3)
	assert.Equal(t, Vec3{X: 1, Y: -3, Z: 2}, v)

	x, y, z := ToSourcePosition(v)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 2.0, y)
	assert.Equal(t, 3.0, z)
}
