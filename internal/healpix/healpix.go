// Package healpix implements the parts of the HEALPix sphere pixelization
// needed to integrate probability maps: pixel centers in NESTED and RING
// ordering, multi-order NUNIQ indices and pixel areas.
package healpix

import (
	"math"
	"math/bits"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/across/internal/errs"
)

// MaxOrder is the deepest supported resolution (NSIDE 2^29).
const MaxOrder = 29

// Ordering is the pixel numbering scheme of a map.
type Ordering int

const (
	Nested Ordering = iota
	Ring
	NUniq
)

func (o Ordering) String() string {
	switch o {
	case Nested:
		return "NESTED"
	case Ring:
		return "RING"
	case NUniq:
		return "NUNIQ"
	}
	return "UNKNOWN"
}

// ParseOrdering accepts the FITS ORDERING keyword values.
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NESTED", "NEST":
		return Nested, nil
	case "RING":
		return Ring, nil
	case "NUNIQ", "NUNIQ_MOC":
		return NUniq, nil
	}
	return 0, errs.Input("unknown HEALPix ordering %q", s)
}

// ValidNSide reports whether nside is a power of two within range.
func ValidNSide(nside int) bool {
	return nside > 0 && nside <= 1<<MaxOrder && nside&(nside-1) == 0
}

// NPix returns the pixel count of a full-sky map.
func NPix(nside int) int {
	return 12 * nside * nside
}

// NSideFromNPix inverts NPix.
func NSideFromNPix(npix int) (int, error) {
	if npix <= 0 || npix%12 != 0 {
		return 0, errs.Input("%d is not a valid HEALPix pixel count", npix)
	}
	nside := int(math.Round(math.Sqrt(float64(npix / 12))))
	if nside*nside*12 != npix || !ValidNSide(nside) {
		return 0, errs.Input("%d is not a valid HEALPix pixel count", npix)
	}
	return nside, nil
}

// OrderToNSide returns 2^order.
func OrderToNSide(order int) int {
	return 1 << order
}

// PixelArea returns the solid angle of one pixel in steradians.
func PixelArea(nside int) float64 {
	return 4 * math.Pi / float64(NPix(nside))
}

// PixelSize returns the approximate pixel width in degrees.
func PixelSize(nside int) float64 {
	return math.Sqrt(PixelArea(nside)) * 180 / math.Pi
}

// UniqToOrderPix splits a NUNIQ index into its order and NESTED pixel.
func UniqToOrderPix(uniq uint64) (order int, ipix uint64, err error) {
	if uniq < 4 {
		return 0, 0, errs.Input("NUNIQ index %d below 4", uniq)
	}
	order = (bits.Len64(uniq) - 3) / 2
	if order > MaxOrder {
		return 0, 0, errs.Input("NUNIQ index %d beyond order %d", uniq, MaxOrder)
	}
	return order, uniq - 4<<(2*order), nil
}

// OrderPixToUniq is the inverse of UniqToOrderPix.
func OrderPixToUniq(order int, ipix uint64) uint64 {
	return 4<<(2*order) + ipix
}

// Face row and column offsets for the twelve base pixels.
var (
	jrll = [12]int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// compress gathers the even bits of v.
func compress(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0f0f0f0f0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff00ff00ff
	v = (v | v>>8) & 0x0000ffff0000ffff
	v = (v | v>>16) & 0x00000000ffffffff
	return v
}

// Pix2ZPhiNest returns cos(colatitude) and longitude (rad) of a NESTED pixel center.
func Pix2ZPhiNest(nside int, ipix uint64) (z, phi float64) {
	n := int64(nside)
	npface := uint64(n * n)
	face := int(ipix / npface)
	ipf := ipix % npface
	ix := int64(compress(ipf))
	iy := int64(compress(ipf >> 1))

	fact2 := 4 / float64(12*n*n)
	jr := int64(jrll[face])*n - (ix + iy) - 1

	var nr, kshift int64
	switch {
	case jr < n:
		nr = jr
		z = 1 - float64(nr*nr)*fact2
	case jr > 3*n:
		nr = 4*n - jr
		z = float64(nr*nr)*fact2 - 1
	default:
		nr = n
		z = float64(2*n-jr) * 2 / (3 * float64(n))
		kshift = (jr - n) & 1
	}

	jp := (int64(jpll[face])*nr + ix - iy + 1 + kshift) / 2
	if jp > 4*n {
		jp -= 4 * n
	}
	if jp < 1 {
		jp += 4 * n
	}
	phi = (float64(jp) - float64(kshift+1)*0.5) * (math.Pi / 2 / float64(nr))
	return z, phi
}

// Pix2ZPhiRing returns cos(colatitude) and longitude (rad) of a RING pixel center.
func Pix2ZPhiRing(nside int, ipix uint64) (z, phi float64) {
	n := int64(nside)
	npix := 12 * n * n
	ncap := 2 * n * (n - 1)
	fact2 := 4 / float64(npix)
	p := int64(ipix)

	switch {
	case p < ncap:
		iring := (1 + isqrt(1+2*p)) >> 1
		iphi := p + 1 - 2*iring*(iring-1)
		z = 1 - float64(iring*iring)*fact2
		phi = (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
	case p < npix-ncap:
		ip := p - ncap
		iring := ip/(4*n) + n
		iphi := ip%(4*n) + 1
		fodd := 0.5
		if (iring+n)&1 == 1 {
			fodd = 1
		}
		z = float64(2*n-iring) * 2 / (3 * float64(n))
		phi = (float64(iphi) - fodd) * math.Pi / (2 * float64(n))
	default:
		ip := npix - p
		iring := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*iring + 1 - (ip - 2*iring*(iring-1))
		z = float64(iring*iring)*fact2 - 1
		phi = (float64(iphi) - 0.5) * math.Pi / (2 * float64(iring))
	}
	return z, phi
}

func isqrt(v int64) int64 {
	r := int64(math.Sqrt(float64(v) + 0.5))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

// ZPhiToVec converts HEALPix (z, phi) to a unit vector.
func ZPhiToVec(z, phi float64) r3.Vec {
	st := math.Sqrt((1 - z) * (1 + z))
	return r3.Vec{X: st * math.Cos(phi), Y: st * math.Sin(phi), Z: z}
}

// Pix2AngNest returns colatitude and longitude in radians.
func Pix2AngNest(nside int, ipix uint64) (theta, phi float64) {
	z, phi := Pix2ZPhiNest(nside, ipix)
	return math.Acos(z), phi
}

// Pix2AngRing returns colatitude and longitude in radians.
func Pix2AngRing(nside int, ipix uint64) (theta, phi float64) {
	z, phi := Pix2ZPhiRing(nside, ipix)
	return math.Acos(z), phi
}

// Pix2VecNest returns the unit vector of a NESTED pixel center.
func Pix2VecNest(nside int, ipix uint64) r3.Vec {
	return ZPhiToVec(Pix2ZPhiNest(nside, ipix))
}

// Pix2VecRing returns the unit vector of a RING pixel center.
func Pix2VecRing(nside int, ipix uint64) r3.Vec {
	return ZPhiToVec(Pix2ZPhiRing(nside, ipix))
}

// RingRange returns the first RING pixel index and pixel count of ring i
// (1 ≤ i ≤ 4·nside−1, numbered from the north pole).
func RingRange(nside, i int) (start uint64, count int) {
	n := nside
	npix := NPix(n)
	switch {
	case i < n:
		return uint64(2 * i * (i - 1)), 4 * i
	case i <= 3*n:
		return uint64(2*n*(n-1) + (i-n)*4*n), 4 * n
	default:
		j := 4*n - i
		return uint64(npix - 2*j*(j+1)), 4 * j
	}
}

// RingZ returns cos(colatitude) of ring i.
func RingZ(nside, i int) float64 {
	n := float64(nside)
	fi := float64(i)
	switch {
	case i < nside:
		return 1 - fi*fi/(3*n*n)
	case i <= 3*nside:
		return (2*n - fi) * 2 / (3 * n)
	default:
		j := 4*n - fi
		return j*j/(3*n*n) - 1
	}
}
