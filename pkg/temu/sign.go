package temu

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ==================== 签名算法 ====================

// Sign 计算 Temu 开放平台签名
// 算法（必须与平台网关完全一致，否则所有请求报 sign 校验失败）:
//  1. 参数按 key 字典序排序
//  2. dict/list 值序列化为紧凑 JSON，标量转字符串，外层双引号剥掉一层
//  3. 依次拼接 key+value
//  4. 两端包上 app_secret: secret + joined + secret
//  5. MD5(UTF-8) 十六进制大写
func Sign(params map[string]interface{}, appSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(appSecret)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(stringifyValue(params[k]))
	}
	sb.WriteString(appSecret)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// stringifyValue 把参数值转成参与签名的字符串形式
// 注意不能走默认的 json.Marshal：它会转义 <>&，导致和网关的拼接结果不一致
func stringifyValue(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// 不可序列化的值退化为 %v，签名照常进行（网关会报错，留给调用方看日志）
		return fmt.Sprintf("%v", v)
	}

	// Encode 末尾带换行
	s := strings.TrimSuffix(buf.String(), "\n")

	// 标量字符串剥掉一层外围双引号: "abc" -> abc
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}
