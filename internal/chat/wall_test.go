package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var wallBase = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestWall_ContainsPublisherPublications(t *testing.T) {
	req := require.New(t)
	pepe, _ := newPepeAndJuan(t)

	first, err := pepe.Publish("a message", wallBase)
	req.NoError(err)

	req.Equal([]Publication{first}, pepe.Wall())
}

func TestWall_ContainsFolloweesPublications(t *testing.T) {
	req := require.New(t)
	follower, followee := newPepeAndJuan(t)
	req.NoError(follower.Follow(followee))

	first, err := followee.Publish("a message", wallBase.Add(time.Second))
	req.NoError(err)

	req.Equal([]Publication{first}, follower.Wall())
	// following is directed
	req.Equal([]Publication{first}, followee.Wall())
}

func TestWall_ContainsFolloweesPublicationsInOrder(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	registerPepeAndJuan(t, r)
	req.NoError(r.Follow(pepeName, juanName))

	first, err := r.Publish(pepeName, "a message", wallBase)
	req.NoError(err)
	second, err := r.Publish(juanName, "a message", wallBase.Add(time.Second))
	req.NoError(err)
	third, err := r.Publish(pepeName, "a message", wallBase.Add(2*time.Second))
	req.NoError(err)

	wall, err := r.Wall(pepeName)
	req.NoError(err)
	req.Equal([]Publication{first, second, third}, wall)

	juanWall, err := r.Wall(juanName)
	req.NoError(err)
	req.Equal([]Publication{second}, juanWall)
}

func TestWall_WithoutFolloweesEqualsTimeline(t *testing.T) {
	req := require.New(t)
	pepe, juan := newPepeAndJuan(t)

	for _, offset := range []int{3, 1, 2, 1} {
		_, err := pepe.Publish("mine", wallBase.Add(time.Duration(offset)*time.Second))
		req.NoError(err)
	}
	_, err := juan.Publish("not followed", wallBase)
	req.NoError(err)

	req.Equal(pepe.Timeline(), pepe.Wall())
}

func TestWall_EmptyWhenNothingPublished(t *testing.T) {
	req := require.New(t)
	pepe, juan := newPepeAndJuan(t)
	req.NoError(pepe.Follow(juan))

	req.Empty(pepe.Wall())
	req.NotNil(pepe.Wall())
}

func TestWall_IsOneHopOnly(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Register(name, "", "")
		req.NoError(err)
	}
	req.NoError(r.Follow("a", "b"))
	req.NoError(r.Follow("b", "c"))

	fromB, err := r.Publish("b", "from b", wallBase)
	req.NoError(err)
	_, err = r.Publish("c", "from c", wallBase.Add(time.Second))
	req.NoError(err)

	wall, err := r.Wall("a")
	req.NoError(err)
	req.Equal([]Publication{fromB}, wall)
}

func TestWall_EqualInstantsFollowPublishOrder(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	registerPepeAndJuan(t, r)
	req.NoError(r.Follow(pepeName, juanName))

	juanFirst, err := r.Publish(juanName, "juan first", wallBase)
	req.NoError(err)
	pepeSecond, err := r.Publish(pepeName, "pepe second", wallBase)
	req.NoError(err)
	juanThird, err := r.Publish(juanName, "juan third", wallBase)
	req.NoError(err)

	wall, err := r.Wall(pepeName)
	req.NoError(err)
	req.Equal([]Publication{juanFirst, pepeSecond, juanThird}, wall)
}

func TestWall_ReflectsNewFollowees(t *testing.T) {
	req := require.New(t)
	pepe, juan := newPepeAndJuan(t)

	pub, err := juan.Publish("before follow", wallBase)
	req.NoError(err)
	req.Empty(pepe.Wall())

	req.NoError(pepe.Follow(juan))
	req.Equal([]Publication{pub}, pepe.Wall())
}

func TestMergeTimelines(t *testing.T) {
	at := func(sec int, seq uint64) Publication {
		return Publication{At: wallBase.Add(time.Duration(sec) * time.Second), Seq: seq}
	}

	tests := []struct {
		name      string
		timelines [][]Publication
		expected  []Publication
	}{
		{
			name:     "no timelines",
			expected: []Publication{},
		},
		{
			name:      "only empty timelines",
			timelines: [][]Publication{nil, {}},
			expected:  []Publication{},
		},
		{
			name:      "single timeline",
			timelines: [][]Publication{{at(1, 1), at(2, 2)}},
			expected:  []Publication{at(1, 1), at(2, 2)},
		},
		{
			name: "interleaved",
			timelines: [][]Publication{
				{at(1, 1), at(4, 4), at(7, 7)},
				{at(2, 2), at(5, 5)},
				{at(3, 3), at(6, 6), at(8, 8), at(9, 9)},
			},
			expected: []Publication{at(1, 1), at(2, 2), at(3, 3), at(4, 4), at(5, 5), at(6, 6), at(7, 7), at(8, 8), at(9, 9)},
		},
		{
			name: "ties broken by sequence",
			timelines: [][]Publication{
				{at(1, 5), at(1, 6)},
				{at(1, 2), at(1, 9)},
			},
			expected: []Publication{at(1, 2), at(1, 5), at(1, 6), at(1, 9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, mergeTimelines(tt.timelines))
		})
	}
}

func TestWall_ConcurrentMutualFollowers(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	names := []string{"a", "b", "c", "d"}
	for _, name := range names {
		_, err := r.Register(name, "", "")
		req.NoError(err)
	}
	for _, follower := range names {
		for _, followee := range names {
			if follower != followee {
				req.NoError(r.Follow(follower, followee))
			}
		}
	}

	const perWriter = 50
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(2)
		go func(i int, name string) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := r.Publish(name, fmt.Sprintf("%s-%d", name, j), wallBase.Add(time.Duration(j*len(names)+i)*time.Millisecond))
				if err != nil {
					t.Errorf("publish: %v", err)
					return
				}
			}
		}(i, name)
		go func(name string) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				wall, err := r.Wall(name)
				if err != nil {
					t.Errorf("wall: %v", err)
					return
				}
				for k := 1; k < len(wall); k++ {
					if wall[k].Before(wall[k-1]) {
						t.Errorf("wall of %s out of order at %d", name, k)
						return
					}
				}
			}
		}(name)
	}
	wg.Wait()

	for _, name := range names {
		wall, err := r.Wall(name)
		req.NoError(err)
		req.Len(wall, perWriter*len(names))
	}
}
