// Package progression содержит доменную модель движка прогрессии.
//
// Пакет превращает учебные события (глава пройдена, квиз сдан, задание
// оценено) в долговременное состояние пользователя:
//
//   - Leveling: чистые функции XP <-> уровень <-> прогресс внутри уровня
//   - Ledger: неизменяемые записи XPTransaction и агрегат UserXP
//   - Streak: конечный автомат серии дней с запасом заморозок
//   - DailyGoal: дневная цель по XP
//   - Achievement: каталог достижений и типизированные условия разблокировки
//   - Leaderboard: типы рейтинга за всё время и за окно
//
// # Конкурентность
//
// Все изменения агрегатов одного пользователя выполняются внутри
// Store.WithinUserTx, который сериализует транзакции по userID на уровне
// хранилища (блокировка строки), а не только в памяти процесса.
//
// # Зависимости
//
// Только стандартная библиотека Go и пакет shared. Часовой пояс передаётся
// снаружи: функции работают с календарными датами, полученными через DayOf.
package progression
