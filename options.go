/*
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package movopt

import (
    `runtime`

    `github.com/klauspost/cpuid/v2`
)

type options struct {
    nproc int
}

// Option configures an Optimize run.
type Option func(*options)

func defaultOptions() options {
    return options { nproc: defaultParallelism() }
}

func defaultParallelism() int {
    if n := cpuid.CPU.LogicalCores; n > 0 {
        return n
    } else {
        return runtime.NumCPU()
    }
}

// WithParallelism caps the number of functions optimized concurrently.
func WithParallelism(n int) Option {
    return func(o *options) {
        if n > 0 {
            o.nproc = n
        }
    }
}

// WithSequential optimizes functions one at a time on the calling
// goroutine.
func WithSequential() Option {
    return func(o *options) {
        o.nproc = 1
    }
}
