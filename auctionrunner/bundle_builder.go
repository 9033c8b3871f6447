package auctionrunner

import (
	"sort"

	"github.com/carriernet/auction/auctiontypes"
)

// BuildBundles partitions the offer list into bundles that are sold jointly
// before any offer is sold individually. Offers are ranked by revenue and each
// bundle pairs a low-revenue offer with its high-revenue counterpart, so no
// bundle is uniformly unattractive. With an odd offer count the middle-ranked
// offer ends up alone in a trailing bundle.
//
// The result is deterministic for a given offer list.
func BuildBundles(offers []*auctiontypes.Offer, bundleSize int) map[int][]string {
	bundles := map[int][]string{}
	n := len(offers)
	if n == 0 || bundleSize <= 0 {
		return bundles
	}

	ranked := make([]int, n)
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return offers[ranked[i]].Revenue < offers[ranked[j]].Revenue
	})

	bundle := 0
	for i := 0; i < n/2; i++ {
		if i%bundleSize == 0 && i != 0 {
			bundle++
		}
		bundles[bundle] = append(bundles[bundle],
			offers[ranked[i]].OfferID,
			offers[ranked[n-1-i]].OfferID,
		)
	}

	if n%2 == 1 {
		bundles[len(bundles)] = []string{offers[ranked[n/2]].OfferID}
	}

	return bundles
}
