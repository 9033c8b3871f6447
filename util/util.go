package util

import (
	crand "crypto/rand"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var R *rand.Rand
var guidTracker map[string]int
var lock *sync.Mutex

func init() {
	R = rand.New(rand.NewSource(time.Now().UnixNano()))
	ResetGuids()
	lock = &sync.Mutex{}
}

func ResetGuids() {
	guidTracker = map[string]int{}
}

// NewGuid returns prefix-1, prefix-2, ... per prefix. Used to name simulated
// carriers and their transport requests.
func NewGuid(prefix string) string {
	guidTracker[prefix] = guidTracker[prefix] + 1
	return fmt.Sprintf("%s-%d", prefix, guidTracker[prefix])
}

func RandomIntIn(min, max int) int {
	return R.Intn(max-min+1) + min
}

func RandomFloatIn(min, max float64) float64 {
	return min + R.Float64()*(max-min)
}

func RandomGuid() string {
	b := make([]byte, 8)
	lock.Lock()
	_, err := crand.Read(b)
	lock.Unlock()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x-%x-%x-%x", b[0:2], b[2:4], b[4:6], b[6:8])
}
