package prescan

import (
	"net"
	"sort"

	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/common"
)

const (
	ScoreGateway  = 100
	ScoreReserved = 90
	ScoreEarly    = 80
	ScorePeak     = 70
	ScorePool     = 50
	ScoreLongTail = 20
	ScoreEdge     = 0
)

type octetRange struct {
	first, last byte
	score       int
}

var octetScores = []octetRange{
	{1, 1, ScoreGateway},
	{254, 254, ScoreGateway},
	{2, 5, ScoreReserved},
	{250, 253, ScoreReserved},
	{6, 10, ScoreEarly},
	{50, 50, ScorePeak},
	{100, 100, ScorePeak},
	{150, 150, ScorePeak},
	{51, 99, ScorePool},
	{101, 149, ScorePool},
	{151, 200, ScorePool},
	{0, 0, ScoreEdge},
	{255, 255, ScoreEdge},
}

// Score rates how likely ip is to be in use. Non-IPv4 addresses get the
// long-tail score.
func Score(ip net.IP) int {
	ip4 := ip.To4()
	if ip4 == nil {
		return ScoreLongTail
	}
	last := ip4[3]
	for _, r := range octetScores {
		if last >= r.first && last <= r.last {
			return r.score
		}
	}
	return ScoreLongTail
}

// Order returns a copy of ips sorted by descending score, ascending address
// within a score
func Order(ips []net.IP) []net.IP {
	ordered := make([]net.IP, len(ips))
	copy(ordered, ips)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := Score(ordered[i]), Score(ordered[j])
		if si != sj {
			return si > sj
		}
		return common.CompareIP(ordered[i], ordered[j]) < 0
	})
	return ordered
}
