// Package xpolicy 提供日志轮转决策。
//
// 决策是纯函数：调用方传入观测到的 [State]，策略返回 [Reason]。
// 策略本身不持有状态，可被多个写入器共享。
//
//   - [Size]: 大小达到上限时轮转
//   - [Date]: 跨越 [DatePattern] 定义的日期边界时轮转
//   - [Any]: 组合多个策略，第一个命中者胜出
//
// 设计决策: 调用方以"写入之后"的大小求值，是否对空文件跳过决策由写入器决定，
// 策略只回答"是否越界"。
package xpolicy
