package routing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RoutingTableTest struct {
	suite.Suite
	table *Table
}

func TestRoutingTableSuite(t *testing.T) {
	suite.Run(t, new(RoutingTableTest))
}

func (s *RoutingTableTest) SetupTest() {
	s.table = New()
}

func (s *RoutingTableTest) TestExactBeatsDomainBeatsDefault() {
	s.Require().NoError(s.table.Add(Route{Kind: Exact, Key: Address{"foo", "d1"}, Target: "gw1"}))
	s.Require().NoError(s.table.Add(Route{Kind: Domain, Key: Address{DomainName: "d1"}, Target: "gw2"}))
	s.Require().NoError(s.table.Add(Route{Kind: Default, Target: "gw3"}))

	target, ok := s.table.Find(Address{"foo", "d1"})
	s.True(ok)
	s.Equal("gw1", target)

	target, ok = s.table.Find(Address{"bar", "d1"})
	s.True(ok)
	s.Equal("gw2", target)

	target, ok = s.table.Find(Address{"bar", "d2"})
	s.True(ok)
	s.Equal("gw3", target)
}

func (s *RoutingTableTest) TestWellKnownOnlyMatchesLocalDomain() {
	s.Require().NoError(s.table.Add(Route{Kind: WellKnown, Key: Address{CellName: "foo"}, Target: "gwA"}))

	target, ok := s.table.Find(Address{"foo", "local"})
	s.True(ok)
	s.Equal("gwA", target)

	_, ok = s.table.Find(Address{"foo", "remote"})
	s.False(ok)
}

func (s *RoutingTableTest) TestTopicMultiSubscriberAndDomainScoping() {
	s.Require().NoError(s.table.Add(Route{Kind: Topic, Key: Address{CellName: "t"}, Target: "gwA"}))
	s.Require().NoError(s.table.Add(Route{Kind: Topic, Key: Address{CellName: "t"}, Target: "gwB"}))

	got := s.table.FindTopicRoutes(Address{"t", "local"})
	s.ElementsMatch([]string{"gwA", "gwB"}, got)

	s.Empty(s.table.FindTopicRoutes(Address{"t", "d1"}))
}

func (s *RoutingTableTest) TestAddRejectsDuplicates() {
	r := Route{Kind: Exact, Key: Address{"foo", "d1"}, Target: "gw1"}
	s.Require().NoError(s.table.Add(r))
	s.ErrorIs(s.table.Add(r), ErrDuplicateRoute)

	s.Require().NoError(s.table.Add(Route{Kind: Default, Target: "gw1"}))
	s.ErrorIs(s.table.Add(Route{Kind: Default, Target: "gw2"}), ErrDuplicateRoute)
}

func (s *RoutingTableTest) TestDeleteSymmetricWithAdd() {
	r := Route{Kind: Exact, Key: Address{"foo", "d1"}, Target: "gw1"}
	s.Require().NoError(s.table.Add(r))
	s.Require().NoError(s.table.Delete(r))
	s.ErrorIs(s.table.Delete(r), ErrRouteNotFound)

	_, ok := s.table.Find(Address{"foo", "d1"})
	s.False(ok)
}

func (s *RoutingTableTest) TestDeleteByTargetRemovesAcrossKinds() {
	s.Require().NoError(s.table.Add(Route{Kind: Exact, Key: Address{"foo", "d1"}, Target: "gwX"}))
	s.Require().NoError(s.table.Add(Route{Kind: Domain, Key: Address{DomainName: "d2"}, Target: "gwX"}))
	s.Require().NoError(s.table.Add(Route{Kind: Topic, Key: Address{CellName: "t"}, Target: "gwX"}))
	s.Require().NoError(s.table.Add(Route{Kind: Domain, Key: Address{DomainName: "d3"}, Target: "gwY"}))

	removed := s.table.DeleteByTarget("gwX")
	s.Len(removed, 3)

	remaining := s.table.GetRoutingList()
	for _, r := range remaining {
		s.NotEqual("gwX", r.Target)
	}
}

func (s *RoutingTableTest) TestConcurrentTopicAddDoesNotRace() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.table.Add(Route{Kind: Topic, Key: Address{CellName: "t"}, Target: string(rune('a' + i%26))})
		}(i)
	}
	wg.Wait()
	// No assertion beyond "did not race/panic"; -race catches data races.
	assert.NotNil(s.T(), s.table.FindTopicRoutes(Address{"t", "local"}))
}
