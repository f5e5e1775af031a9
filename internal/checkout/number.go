package checkout

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const orderNumberPrefix = "TL"

// NumberGenerator builds order numbers of the form
// TL<YYYYMMDDHHmmss><4 random digits>. Collisions are possible and are
// caught by the orders.order_number unique constraint.
type NumberGenerator struct {
	now    func() time.Time
	digits func() int
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{
		now:    time.Now,
		digits: func() int { return rand.IntN(10000) },
	}
}

func (g *NumberGenerator) Next() string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, g.now().Format("20060102150405"), g.digits())
}
