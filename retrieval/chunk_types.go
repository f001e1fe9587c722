package retrieval

import (
	"fmt"
	"strings"
)

// chunkTypes is the controlled vocabulary of structured attribute
// categories, in index order. The leading numbering is part of the stored
// chunk_type value and must match the index verbatim.
var chunkTypes = []string{
	"1）生效日期",
	"2）适用人群（年龄、性别、地区）",
	"3）保障责任范围",
	"4）免责条款",
	"5）等待期天数",
	"6）续保规则",
	"7）销售区域限制",
	"8）各年龄段保费表",
	"9）保障疾病/药品覆盖清单",
	"10）赔付限额",
	"11）年免赔额",
	"12）赔付比例",
	"13）犹豫期天数",
	"14）保障区域",
	"15）缴费方式（是否支持话费扣除）",
	"16）保险期限",
	"17）医院范围",
	"18）健康管理服务",
	"19）家庭费率",
	"20）宽限期",
	"21）所属保险公司",
	"22）是否有职业限制，职业限制名单(《特殊职业类别表》)",
	"23）可投保标的（车/建筑）",
	"24）产品分类（医疗险、重疾险、意外险、寿险、车险、宠物险、防诈险、碎屏险、家财险）",
	"25）健康告知要求",
	"26）增值服务内容（如：绿通、垫付、特药服务）",
	"27）保费",
}

// overviewChunkTypes is the fixed, ordered subset emitted for a product
// overview request.
var overviewChunkTypes = []string{
	chunkTypes[0],  // 生效日期
	chunkTypes[1],  // 适用人群
	chunkTypes[2],  // 保障责任范围
	chunkTypes[15], // 保险期限
	chunkTypes[20], // 所属保险公司
	chunkTypes[23], // 产品分类
	chunkTypes[26], // 保费
}

// chunkTypeByNumber maps "1".."27" to the full category label.
var chunkTypeByNumber = func() map[string]string {
	m := make(map[string]string, len(chunkTypes))
	for i, label := range chunkTypes {
		m[fmt.Sprintf("%d", i+1)] = label
	}
	return m
}()

// chunkTypeListing renders the numbered vocabulary for the classification
// prompt.
func chunkTypeListing() string {
	lines := make([]string, 0, len(chunkTypes))
	for i, label := range chunkTypes {
		lines = append(lines, fmt.Sprintf("%d：%s", i+1, label))
	}
	return strings.Join(lines, "\n")
}
