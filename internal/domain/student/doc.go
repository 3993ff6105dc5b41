// Package student содержит минимальную модель ростера, которую читает ядро
// геймификации.
//
// Ядро не владеет студентами: их создают и редактируют внешние системы
// (учреждения, классы, курсы). Отсюда ядру нужны только:
//
//   - имя для отображения в лидерборде;
//   - учреждение и класс для фильтрации лидерборда.
//
// # Репозиторий
//
// Repository реализован в infrastructure/persistence (PostgreSQL и SQLite).
// Upsert используется только импортом ростера из cmd/admin:
//
//	err := repo.Upsert(ctx, []student.Student{{
//	    ID:            "s-001",
//	    Name:          "Айгерим",
//	    InstitutionID: "alem-astana",
//	    ClassID:       "2024-spring",
//	}})
//
// Чтение всегда пакетное (GetByIDs), чтобы обогащение лидерборда стоило
// O(limit) запросов, а не O(число студентов).
package student
