/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cache

import "strings"

// BuildKey returns the cache key for a request: cache:<METHOD>:<endpoint>.
func BuildKey(method, endpoint string) string {
	return KeyPrefix + strings.ToUpper(method) + ":" + endpoint
}

// ParseKey splits a key built by BuildKey into its method and endpoint.
func ParseKey(key string) (method, endpoint string, ok bool) {
	rest, found := strings.CutPrefix(key, KeyPrefix)
	if !found {
		return "", "", false
	}
	method, endpoint, ok = strings.Cut(rest, ":")
	return method, endpoint, ok
}
