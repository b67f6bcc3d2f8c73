// Package prescan orders scan targets so that the addresses most likely to be
// in use are probed first. Scores come from the last octet:
//
//   - 100: .1, .254 (routers/gateways)
//   - 90:  .2-.5, .250-.253 (reserved infrastructure)
//   - 80:  .6-.10 (early DHCP)
//   - 70:  .50, .100, .150 (DHCP peaks)
//   - 50:  .51-.99, .101-.149, .151-.200 (main DHCP pool)
//   - 20:  .11-.49, .201-.249 (long-tail)
//   - 0:   .0, .255
//
// Ordering only changes dispatch. Callers that need ascending results sort
// them afterwards.
package prescan
