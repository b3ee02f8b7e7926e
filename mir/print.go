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

package mir

import (
    `fmt`
    `sort`
    `strings`
)

// String renders the function as a diagnostic listing. The rendering is
// stable (labels sorted, temporaries shown with display names where
// declared) so before/after snapshots can be compared textually.
func (self *Function) String() string {
    var buf []string

    /* function header */
    args := make([]string, 0, len(self.Params))
    for _, p := range self.Params {
        args = append(args, fmt.Sprintf("%s: %s", self.tmpstr(p), self.Types[p]))
    }
    buf = append(buf, fmt.Sprintf("function %s(%s) {", self.Name, strings.Join(args, ", ")))

    /* named locals */
    for i := len(self.Params); i < len(self.Types); i++ {
        if self.Names[i] != "" {
            buf = append(buf, fmt.Sprintf("    local %s: %s", self.tmpstr(Temp(i)), self.Types[i]))
        }
    }

    /* instruction listing with label marks */
    for i, p := range self.Code {
        for _, lb := range self.sortedLabelsAt(i) {
            buf = append(buf, lb + ":")
        }
        buf = append(buf, "    " + self.instrstr(p))
    }

    /* trailing labels, if any */
    for _, lb := range self.sortedLabelsAt(len(self.Code)) {
        buf = append(buf, lb + ":")
    }

    /* close the listing */
    buf = append(buf, "}")
    return strings.Join(buf, "\n")
}

func (self *Function) tmpstr(t Temp) string {
    if int(t) < len(self.Names) && self.Names[t] != "" {
        return "%" + self.Names[t]
    } else {
        return fmt.Sprintf("%%t%d", uint32(t))
    }
}

func (self *Function) sortedLabelsAt(i int) []string {
    r := self.LabelsAt(i)
    sort.Strings(r)
    return r
}

func (self *Function) instrstr(p Instr) string {
    s := p.String()

    /* patch plain indices with display names, longest index first so
     * "%1" never clobbers "%12" */
    for i := len(self.Names) - 1; i >= 0; i-- {
        s = strings.ReplaceAll(s, Temp(i).String(), self.tmpstr(Temp(i)))
    }
    return s
}
