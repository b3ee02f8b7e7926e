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

package flow

import (
    `fmt`
    `os`
    `path/filepath`
    `strings`

    `github.com/davecgh/go-spew/spew`
    `github.com/oleiade/lane`
)

// Set MOVOPT_DEBUG_DIR to dump a Graphviz rendering of every analyzed
// CFG together with the per-instruction fixed-point state.
var debugDir = os.Getenv("MOVOPT_DEBUG_DIR")

var debugSpew = spew.ConfigState {
    Indent                  : "    ",
    SortKeys                : true,
    DisablePointerAddresses : true,
}

// Dump writes the analysis state for offline inspection. It is a no-op
// unless MOVOPT_DEBUG_DIR is set.
func (self *ReachingDefs) Dump() {
    if debugDir != "" {
        dumpdot(self.cfg, filepath.Join(debugDir, self.Fn.Name + ".gv"))
        dumpstate(self, filepath.Join(debugDir, self.Fn.Name + ".state.txt"))
    }
}

func dumpstate(rd *ReachingDefs, fname string) {
    var buf []string
    for i, p := range rd.Fn.Code {
        buf = append(buf, fmt.Sprintf("#%d %s", i, p))
        buf = append(buf, "  in  = " + strings.TrimSuffix(debugSpew.Sdump(rd.In[i]), "\n"))
        buf = append(buf, "  out = " + strings.TrimSuffix(debugSpew.Sdump(rd.Out[i]), "\n"))
    }
    if err := os.WriteFile(fname, []byte(strings.Join(buf, "\n")), 0644); err != nil {
        panic(err)
    }
}

func dumpdot(cfg *CFG, fname string) {
    q := lane.NewQueue()
    n := make(map[int]bool)
    buf := []string {
        "digraph CFG {",
        `    node [ fontname = "Fira Code" shape = "box" ]`,
        `    START [ shape = "circle" ]`,
        fmt.Sprintf(`    START -> bb_%d`, cfg.Root),
    }

    /* breadth-first walk over the block arena */
    for q.Enqueue(cfg.Root); !q.Empty(); {
        id := q.Dequeue().(int)
        bb := cfg.Blocks[id]

        /* render the block body */
        var ins []string
        for _, p := range bb.Ins {
            ins = append(ins, p.String())
        }
        buf = append(buf, fmt.Sprintf(
            `    bb_%d [ label = "bb_%d\n%s" ]`,
            id, id, strings.Join(ins, `\n`),
        ))

        /* follow the successor edges */
        n[id] = true
        for _, s := range bb.Succ {
            buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d`, id, s))
            if !n[s] {
                n[s] = true
                q.Enqueue(s)
            }
        }
    }

    buf = append(buf, "}")
    if err := os.WriteFile(fname, []byte(strings.Join(buf, "\n")), 0644); err != nil {
        panic(err)
    }
}
