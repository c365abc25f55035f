package utils

import (
	"crypto/rand"
	"math/big"
)

var passwordLetters = []rune("abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%^&*")

// GenerateRandomPassword 新建账号时使用的初始密码，去掉了容易混淆的 0/O、1/l/I
func GenerateRandomPassword(length int) string {
	password := make([]rune, length)
	max := big.NewInt(int64(len(passwordLetters)))
	for i := range password {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		password[i] = passwordLetters[n.Int64()]
	}
	return string(password)
}
