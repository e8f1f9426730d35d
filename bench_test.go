// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slab

import (
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkInsertGrow(b *testing.B) {
	b.Run("impl=slice", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSliceInsertGrow[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSliceInsertGrow[string], genStringValues))
	})
	b.Run("impl=slab", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSlabInsertGrow[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSlabInsertGrow[string], genStringValues))
	})
}

func BenchmarkInsertPreAllocate(b *testing.B) {
	b.Run("impl=slice", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSliceInsertPreAllocate[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSliceInsertPreAllocate[string], genStringValues))
	})
	b.Run("impl=slab", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSlabInsertPreAllocate[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSlabInsertPreAllocate[string], genStringValues))
	})
}

func BenchmarkInsertRemove(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapInsertRemove[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapInsertRemove[string], genStringValues))
	})
	b.Run("impl=slab", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSlabInsertRemove[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSlabInsertRemove[string], genStringValues))
	})
}

func BenchmarkGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genStringValues))
	})
	b.Run("impl=slab", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkSlabGetHit[int64], genInt64Values))
		b.Run("t=String", benchSizes(benchmarkSlabGetHit[string], genStringValues))
	})
}

func benchSizes[T any](
	f func(b *testing.B, n int, genValues func(start, end int) []T), genValues func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		8,
		64,
		512,
		4096,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genValues) })
		}
	}
}

func genInt64Values(start, end int) []int64 {
	vals := make([]int64, end-start)
	for i := range vals {
		vals[i] = int64(start + i)
	}
	return vals
}

func genStringValues(start, end int) []string {
	vals := make([]string, end-start)
	for i := range vals {
		vals[i] = strconv.Itoa(start + i)
	}
	return vals
}

func benchmarkSliceInsertGrow[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var s []T
		for _, v := range vals {
			s = append(s, v)
		}
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkSlabInsertGrow[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var s Slab[T]
		for _, v := range vals {
			_, _ = s.Insert(v)
		}
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkSliceInsertPreAllocate[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := make([]T, 0, n)
		for _, v := range vals {
			s = append(s, v)
		}
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkSlabInsertPreAllocate[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, _ := New[T](n)
		for _, v := range vals {
			_, _ = s.Insert(v)
		}
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkRuntimeMapInsertRemove[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	m := make(map[int]T, n)
	for i, v := range vals {
		m[i] = v
	}
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, j)
		m[j] = vals[j]
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkSlabInsertRemove[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	s, _ := New[T](n)
	keys := make([]int, n)
	for i, v := range vals {
		keys[i], _ = s.Insert(v)
	}
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		s.Remove(keys[j])
		keys[j], _ = s.Insert(vals[j])
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkRuntimeMapGetHit[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	m := make(map[int]T, n)
	for i, v := range vals {
		m[i] = v
	}
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[i%n]
	}
	b.StopTimer()
	ctrs.Stop()
}

func benchmarkSlabGetHit[T any](b *testing.B, n int, genValues func(start, end int) []T) {
	vals := genValues(0, n)
	s, _ := New[T](n)
	keys := make([]int, n)
	for i, v := range vals {
		keys[i], _ = s.Insert(v)
	}
	ctrs := perfbench.Open(b)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = s.Get(keys[i%n])
	}
	b.StopTimer()
	ctrs.Stop()
	if !ok {
		b.Fatal("expected hit")
	}
}
