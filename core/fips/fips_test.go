package fips

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/hioload-rngd/api"
	"github.com/momentics/hioload-rngd/fake"
)

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestAllZeroBlockFails(t *testing.T) {
	res, _, err := New().Run(State{}, make([]byte, BlockSize))
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed() {
		t.Fatal("all-zero block passed")
	}
	for _, want := range []Test{Monobit, Poker, Runs, LongRun} {
		if !res.Failed(want) {
			t.Errorf("all-zero block did not fail %s", want)
		}
	}
	if res.Ones != 0 || res.LongestRun != BlockSize*8 {
		t.Errorf("ones=%d longest=%d", res.Ones, res.LongestRun)
	}
}

func TestAlternatingBlockFails(t *testing.T) {
	block := bytes.Repeat([]byte{0xAA, 0x55}, BlockSize/2)
	e := New()
	for i := 0; i < 3; i++ {
		res, _, err := e.Run(State{}, block)
		if err != nil {
			t.Fatal(err)
		}
		if res.Passed() || !res.Failed(Runs) {
			t.Fatalf("run %d: alternating block must fail the runs test, failures=%v", i, res.Failures())
		}
		if !res.Failed(Poker) {
			t.Errorf("alternating block must fail poker")
		}
		if res.Failed(Monobit) {
			t.Errorf("alternating block has exactly half ones, monobit must pass")
		}
		// 0xAA,0x55 never produces runs longer than 2 bits.
		if res.LongestRun != 2 || res.Failed(LongRun) {
			t.Errorf("longest run = %d", res.LongestRun)
		}
	}
}

func TestKeystreamBlocksPass(t *testing.T) {
	data := fake.Keystream(testKey(), 8*BlockSize)
	e := New()
	var st State
	for i := 0; i < 8; i++ {
		res, next, err := e.Run(st, data[i*BlockSize:(i+1)*BlockSize])
		if err != nil {
			t.Fatal(err)
		}
		if !res.Passed() {
			t.Errorf("block %d failed: %v (ones=%d poker=%.2f runs=%v longest=%d)",
				i, res.Failures(), res.Ones, res.PokerX, res.Runs, res.LongestRun)
		}
		st = next
	}
}

func TestDeterministic(t *testing.T) {
	block := fake.Keystream(testKey(), BlockSize)
	e := New()
	prev := State{LastBit: 1, RunLength: 7}
	r1, s1, _ := e.Run(prev, block)
	r2, s2, _ := e.Run(prev, block)
	if r1 != r2 || s1 != s2 {
		t.Fatal("identical input and state produced different verdicts")
	}
}

func TestLongRunSpansBlocks(t *testing.T) {
	data := fake.Keystream(testKey(), 2*BlockSize)
	a := append([]byte(nil), data[:BlockSize]...)
	a[BlockSize-4] = 0x00
	copy(a[BlockSize-3:], []byte{0xff, 0xff, 0xff})
	b := append([]byte(nil), data[BlockSize:]...)
	b[0], b[1] = 0xff, 0x00

	e := New()
	ra, sa, err := e.Run(State{}, a)
	if err != nil {
		t.Fatal(err)
	}
	if ra.Failed(LongRun) {
		t.Fatal("24 trailing ones must not fail on their own")
	}
	if sa.LastBit != 1 || sa.RunLength != 24 {
		t.Fatalf("residual = %+v, want last bit 1 run 24", sa)
	}

	rb, sb, _ := e.Run(sa, b)
	if !rb.Failed(LongRun) || rb.LongestRun != 32 {
		t.Errorf("carried run: failed=%v longest=%d, want failure at 32", rb.Failed(LongRun), rb.LongestRun)
	}
	if sb.LastBit != 1 || sb.RunLength != 1 {
		t.Errorf("residual after b = %+v", sb)
	}

	fresh, _, _ := e.Run(State{}, b)
	if fresh.Failed(LongRun) {
		t.Error("without residual the same block must pass the long run test")
	}
}

func TestFinishedRunDoesNotLeak(t *testing.T) {
	// A failed run that ends exactly at the boundary is not charged to the
	// next block when the next block starts with the other bit value.
	data := fake.Keystream(testKey(), BlockSize)
	b := append([]byte(nil), data...)
	b[0] |= 0x80
	prev := State{LastBit: 0, RunLength: 40}
	res, _, _ := New().Run(prev, b)
	if res.Failed(LongRun) {
		t.Error("next block charged with a finished run")
	}
}

func TestZeroBlockResidualDoesNotPoisonNextBlock(t *testing.T) {
	good := fake.Keystream(testKey(), BlockSize)
	if good[0]&0x80 != 0 {
		t.Fatal("block must start with a 0 bit")
	}
	e := New(WithContinuousRun())
	res, st, _ := e.Run(Seed([]byte{1, 2, 3, 4}), make([]byte, BlockSize))
	if res.Passed() || st.RunLength != BlockSize*8 {
		t.Fatalf("zero block: passed=%v residual=%+v", res.Passed(), st)
	}
	if carried, _, _ := e.Run(st, good); !carried.Failed(LongRun) {
		t.Fatal("unreset residual must carry the zero run into the next block")
	}

	next := st.AfterReject()
	if next.RunLength != 0 || next.LastBit != 0 {
		t.Errorf("long-run residual not restarted: %+v", next)
	}
	if !next.HasLast32 || next.Last32 != 0 {
		t.Errorf("continuous-run word lost: %+v", next)
	}
	if res, _, _ := e.Run(next, good); !res.Passed() {
		t.Errorf("passing block rejected after reset: %v", res.Failures())
	}
}

func TestRunsIntervals(t *testing.T) {
	if runsMin != [6]int{2343, 1135, 542, 251, 111, 111} || runsMax != [6]int{2657, 1365, 708, 373, 201, 201} {
		t.Errorf("runs intervals %v..%v", runsMin, runsMax)
	}
	good := fake.Keystream(testKey(), BlockSize)
	res, _, _ := New().Run(State{}, good)
	for bit := 0; bit < 2; bit++ {
		for i, n := range res.Runs[bit] {
			if n < runsMin[i] || n > runsMax[i] {
				t.Errorf("runs of %d, length %d: %d outside interval", bit, i+1, n)
			}
		}
	}
}

func TestContinuousRun(t *testing.T) {
	block := fake.Keystream(testKey(), 3*BlockSize)[2*BlockSize:]
	block = append([]byte(nil), block...)
	copy(block[100:104], block[96:100])

	if res, _, _ := New().Run(State{}, block); !res.Passed() {
		t.Fatalf("default battery must ignore repeated words, failures=%v", res.Failures())
	}
	e := New(WithContinuousRun())
	res, st, _ := e.Run(State{}, block)
	if !res.Failed(ContinuousRun) {
		t.Error("repeated word not detected")
	}
	if !st.HasLast32 {
		t.Error("continuous state not carried")
	}

	// the reference word carries across blocks
	clean := fake.Keystream(testKey(), BlockSize)
	prev := Seed(clean[:4])
	if res, _, _ := e.Run(prev, clean); !res.Failed(ContinuousRun) {
		t.Error("first word equal to the seeded word must fail")
	}
}

func TestWrongBlockSize(t *testing.T) {
	_, _, err := New().Run(State{}, make([]byte, BlockSize-1))
	if !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestTestNames(t *testing.T) {
	if Monobit.String() != "Monobit" || LongRun.String() != "Long run" {
		t.Error("unexpected test names")
	}
	if Test(42).String() != "Test(42)" {
		t.Error("out of range name")
	}
}

func BenchmarkRun(b *testing.B) {
	block := fake.Keystream(testKey(), BlockSize)
	e := New()
	var st State
	b.SetBytes(BlockSize)
	for i := 0; i < b.N; i++ {
		_, st, _ = e.Run(st, block)
	}
}
