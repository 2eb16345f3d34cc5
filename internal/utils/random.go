package utils

import (
	"math/rand/v2"
	"strings"

	"github.com/mozillazg/go-pinyin"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.IntN(len(commonSurnames))]
	nameLength := rand.IntN(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.IntN(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateUserIDFromChineseName 生成形如 LINE 用户 ID 的测试 ID，例如 "Uzhangwei042"
func GenerateUserIDFromChineseName(chineseName string) string {
	var b strings.Builder
	b.WriteString("U")

	for _, p := range pinyin.LazyConvert(chineseName, nil) {
		b.WriteString(p)
	}

	for i := 0; i < 3; i++ {
		b.WriteByte(digits[rand.IntN(len(digits))])
	}

	return b.String()
}

var shiftTypes = []string{
	"打扫卫生", "前台值班", "仓库盘点", "活动布置", "夜间巡查", "资料整理",
}

func GenerateRandomShiftType() string {
	return shiftTypes[rand.IntN(len(shiftTypes))]
}

func GenerateRandomRequiredPeople() int32 {
	return int32(rand.IntN(4) + 1)
}
