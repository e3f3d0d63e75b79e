package util

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成一个标准的 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateRequestNumber 生成对外可见的请求编号，形如 TOOLS483920
func GenerateRequestNumber() string {
	return fmt.Sprintf("TOOLS%06d", rand.Intn(1000000))
}

// InstanceID 返回当前进程的实例标识 hostname_pid，
// 用作邮件任务的 ClaimedBy，便于定位卡死的认领
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s_%d", host, os.Getpid())
}
