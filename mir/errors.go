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
)

// IRValidationError occurs when a function violates the structural or
// linearity assumptions of the IR: a branch to an undefined label, a
// use with no reaching definition, or a binding moved twice. The pass
// that detects it aborts for that function only and leaves its IR
// unchanged.
type IRValidationError struct {
    Func   string
    Index  int
    Temp   int
    Reason string
}

func (self IRValidationError) Error() string {
    if self.Index < 0 {
        return fmt.Sprintf("IRValidationError(%s): %s", self.Func, self.Reason)
    } else if self.Temp < 0 {
        return fmt.Sprintf("IRValidationError(%s): %s at #%d", self.Func, self.Reason, self.Index)
    } else {
        return fmt.Sprintf("IRValidationError(%s): %s at #%d (%%%d)", self.Func, self.Reason, self.Index, self.Temp)
    }
}
