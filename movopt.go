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

// Package movopt is a reaching-definition copy optimizer for a linear
// (move-once) bytecode IR. It performs a CFG-based fixed-point dataflow
// analysis per function and rewrites redundant value copies into direct
// references or moves while preserving move-once semantics on every
// control-flow path.
package movopt

import (
    `fmt`
    `sort`
    `strings`
    `sync`

    `github.com/bytedance/gopkg/util/gopool`
    `github.com/cloudwego/movopt/flow`
    `github.com/cloudwego/movopt/mir`
)

// Analyze computes reaching definitions for fn. Pure and deterministic,
// the input is never modified.
func Analyze(fn *mir.Function) (*flow.ReachingDefs, error) {
    return flow.Analyze(fn)
}

// Rewrite produces an optimized copy of fn from its analysis results.
// The input function is never mutated; on failure the caller keeps it.
func Rewrite(fn *mir.Function, rd *flow.ReachingDefs) (*mir.Function, error) {
    return flow.Rewrite(fn, rd)
}

// RunPass analyzes and rewrites fn in one step. The replacement is
// atomic: on any validation failure the original function is returned
// unchanged alongside the error.
func RunPass(fn *mir.Function) (*mir.Function, error) {
    rd, err := Analyze(fn)
    if err != nil {
        return fn, err
    }
    ret, err := Rewrite(fn, rd)
    if err != nil {
        return fn, err
    }
    return ret, nil
}

// FuncError records one function's optimization failure.
type FuncError struct {
    Func string
    Err  error
}

func (self FuncError) Error() string {
    return fmt.Sprintf("%s: %s", self.Func, self.Err)
}

func (self FuncError) Unwrap() error {
    return self.Err
}

// ModuleError aggregates the per-function failures of one Optimize run.
type ModuleError struct {
    Errs []FuncError
}

func (self ModuleError) Error() string {
    r := make([]string, len(self.Errs))
    for i, e := range self.Errs { r[i] = e.Error() }
    return "movopt: " + strings.Join(r, "; ")
}

// Optimize runs the pass over every function of the program. Functions
// share no state, so they are optimized concurrently on a worker pool
// sized to the available compute units. A function that fails
// validation keeps its original IR; its siblings are unaffected. The
// returned error, if any, is a ModuleError listing every failure.
func Optimize(p *mir.Program, opts ...Option) (*mir.Program, error) {
    var wg sync.WaitGroup
    var mu sync.Mutex

    /* apply the options */
    o := defaultOptions()
    for _, f := range opts {
        f(&o)
    }

    /* result slots, original retained on failure */
    var errs []FuncError
    ret := &mir.Program {
        Name      : p.Name,
        Functions : make([]*mir.Function, len(p.Functions)),
    }

    /* per-function task */
    task := func(i int, fn *mir.Function) {
        defer wg.Done()
        nf, err := RunPass(fn)
        ret.Functions[i] = nf
        if err != nil {
            mu.Lock()
            errs = append(errs, FuncError { Func: fn.Name, Err: err })
            mu.Unlock()
        }
    }

    /* sequential mode for debugging and deterministic profiles */
    if o.nproc <= 1 {
        for i, fn := range p.Functions {
            wg.Add(1)
            task(i, fn)
        }
    } else {
        pool := gopool.NewPool("movopt", int32(o.nproc), gopool.NewConfig())
        for i, fn := range p.Functions {
            i, fn := i, fn
            wg.Add(1)
            pool.Go(func() { task(i, fn) })
        }
    }

    /* wait for every function and collect the failures */
    wg.Wait()
    if len(errs) == 0 {
        return ret, nil
    }

    /* deterministic error order regardless of scheduling */
    sort.Slice(errs, func(i int, j int) bool { return errs[i].Func < errs[j].Func })
    return ret, ModuleError { Errs: errs }
}
