/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ib

import "github.com/cespare/xxhash"

// addrHash narrows GetOrCreateID's candidate set before the linear
// byte-equality confirm §4.4 requires; it does not change the documented
// linear-search contract, only the constant factor (SPEC_FULL §6).
func addrHash(addr []byte) uint64 {
	return xxhash.Sum64(addr)
}
