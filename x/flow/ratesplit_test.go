package flow

import (
	"testing"

	"github.com/iov-one/flowtree"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSplitRate(t *testing.T) {
	Convey("Given a node configuration", t, func() {
		conf := &NodeConfig{BaselinePercent: 5000, RewardPercent: 1000, QuorumPercent: 5000}

		Convey("The reward is taken first and the baseline from the rest", func() {
			rates, err := SplitRate(1000, conf, 0, 100)
			So(err, ShouldBeNil)
			So(rates.Reward, ShouldEqual, 100)
			So(rates.Baseline, ShouldEqual, 450)
			So(rates.Bonus, ShouldEqual, 0)
		})

		Convey("The bonus grows with participation", func() {
			rates, err := SplitRate(1000, conf, 25, 100)
			So(err, ShouldBeNil)
			So(rates.Bonus, ShouldEqual, 225)
		})

		Convey("The bonus is capped once the quorum is reached", func() {
			atQuorum, err := SplitRate(1000, conf, 50, 100)
			So(err, ShouldBeNil)
			So(atQuorum.Bonus, ShouldEqual, 450)

			above, err := SplitRate(1000, conf, 100, 100)
			So(err, ShouldBeNil)
			So(above, ShouldResemble, atQuorum)
		})

		Convey("Without any possible weight there is no bonus", func() {
			rates, err := SplitRate(1000, conf, 0, 0)
			So(err, ShouldBeNil)
			So(rates.Bonus, ShouldEqual, 0)
			So(rates.Baseline, ShouldEqual, 450)
		})

		Convey("The parts never exceed the total", func() {
			for _, total := range []int64{0, 1, 7, 999, 1000, 123457} {
				for _, active := range []int64{0, 1, 33, 50, 99} {
					rates, err := SplitRate(total, conf, active, 99)
					So(err, ShouldBeNil)
					So(rates.Sum(), ShouldBeLessThanOrEqualTo, total)
					So(rates.Baseline, ShouldBeGreaterThanOrEqualTo, 0)
					So(rates.Bonus, ShouldBeGreaterThanOrEqualTo, 0)
				}
			}
		})

		Convey("Invalid input is rejected", func() {
			_, err := SplitRate(-1, conf, 0, 0)
			So(err, ShouldNotBeNil)
			_, err = SplitRate(10, conf, -1, 0)
			So(err, ShouldNotBeNil)
			_, err = SplitRate(10, nil, 0, 0)
			So(err, ShouldNotBeNil)
			_, err = SplitRate(10, &NodeConfig{BaselinePercent: 9000, RewardPercent: 2000, QuorumPercent: 1}, 0, 0)
			So(err, ShouldNotBeNil)
			_, err = SplitRate(10, &NodeConfig{BaselinePercent: 1000}, 0, 0)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A full baseline configuration streams everything equally", t, func() {
		rates, err := SplitRate(777, &NodeConfig{BaselinePercent: flowtree.Scale, QuorumPercent: flowtree.Scale}, 10, 10)
		So(err, ShouldBeNil)
		So(rates, ShouldResemble, Rates{Baseline: 777})
	})
}
